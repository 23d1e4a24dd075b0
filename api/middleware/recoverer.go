package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/angelmondragon/storefront/api/responses"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler is
// re-raised so net/http can drop the connection quietly.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				ctx := logg.WithFields(r.Context(), map[string]any{
					"panic":       fmt.Sprint(rec),
					"panic_stack": string(debug.Stack()),
					"method":      r.Method,
					"path":        r.URL.Path,
				})
				logg.Error(ctx, "panic.recovered", fmt.Errorf("panic: %v", rec))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeInternal, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
