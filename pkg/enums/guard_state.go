package enums

// GuardState is the navigation guard's view of the session.
type GuardState string

const (
	GuardStateAuthorized   GuardState = "authorized"
	GuardStateUnauthorized GuardState = "unauthorized"
)

// String implements fmt.Stringer.
func (g GuardState) String() string {
	return string(g)
}
