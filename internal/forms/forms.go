// Package forms validates user input before it is allowed to reach the gateway.
// Failures are VALIDATION_ERROR values whose details map json field names to messages.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a json field name to a human readable message.
type FieldErrors map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// Credentials validates the login form.
func Credentials(c types.Credentials) error {
	return Struct(c)
}

// Profile validates the signup form.
func Profile(p types.Profile) error {
	return Struct(p)
}

// Address validates the checkout address form.
func Address(a types.Address) error {
	return Struct(Normalize(a))
}

// Quantity checks q against [1, max].
func Quantity(q, max int) error {
	if q < 1 || q > max {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", max)).
			WithDetails(FieldErrors{"quantity": fmt.Sprintf("must be between 1 and %d", max)})
	}
	return nil
}

// Details extracts field errors from a validation error, or nil.
func Details(err error) FieldErrors {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		return nil
	}
	fields, _ := typed.Details().(FieldErrors)
	return fields
}

// Normalize trims surrounding whitespace from every address field.
func Normalize(a types.Address) types.Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.StreetAddress = strings.TrimSpace(a.StreetAddress)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PinCode = strings.TrimSpace(a.PinCode)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Country = strings.TrimSpace(a.Country)
	a.Email = strings.TrimSpace(a.Email)
	return a
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := FieldErrors{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// fieldPath drops the root struct name so nested fields read as addresses[0].city.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}
