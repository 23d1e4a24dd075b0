package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure. It doubles as the wire "code" field.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is the transport-facing description of a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// statusCodes maps gateway HTTP statuses back onto error codes. 409 is
// ambiguous; the gateway refines it from the envelope.
var statusCodes = map[int]Code{
	http.StatusBadRequest:          CodeValidation,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusUnprocessableEntity: CodeStateConflict,
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// CodeForStatus translates a non-2xx gateway response status into a Code.
// Anything not explicitly mapped is treated as a dependency failure.
func CodeForStatus(status int) Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return CodeDependency
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Error renders "CODE: message", followed by the cause when there is one.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// UserMessage returns the message stored on a slice when an operation is rejected.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	if msg := typed.Message(); msg != "" {
		return msg
	}
	return MetadataFor(typed.Code()).PublicMessage
}
