package types

// Envelope is the success body shape: {"data": ...}.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// SuccessEnvelope is what handlers write; clients decode into a concrete Envelope.
type SuccessEnvelope = Envelope[any]

// APIError carries a machine code and a message safe to show users. Details are
// set only for codes that allow them, e.g. per-field validation messages.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the failure body shape: {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
