package enums

// CheckoutState is the orchestrator's position in the purchase workflow.
type CheckoutState string

const (
	CheckoutStateEditing    CheckoutState = "editing"
	CheckoutStateSubmitting CheckoutState = "submitting"
	CheckoutStateCompleted  CheckoutState = "completed"
	CheckoutStateFailed     CheckoutState = "failed"
	CheckoutStateAborted    CheckoutState = "aborted"
)

// String implements fmt.Stringer.
func (c CheckoutState) String() string {
	return string(c)
}

// IsTerminal reports whether the workflow can no longer accept input.
func (c CheckoutState) IsTerminal() bool {
	return c == CheckoutStateCompleted || c == CheckoutStateAborted
}

// AcceptsEdits reports whether cart and selection changes are allowed.
func (c CheckoutState) AcceptsEdits() bool {
	return c == CheckoutStateEditing || c == CheckoutStateFailed
}
