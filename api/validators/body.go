package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront/internal/forms"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// DecodeJSONBody decodes exactly one JSON value from the request body into dest,
// rejecting unknown fields, then runs dest's validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dest)
	switch {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	case decoder.More():
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON value")
	}
	return forms.Struct(dest)
}
