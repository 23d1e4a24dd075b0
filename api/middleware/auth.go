package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	pkgAuth "github.com/angelmondragon/storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// TokenParser validates a raw bearer token.
type TokenParser interface {
	ParseToken(token string) (*pkgAuth.AccessTokenClaims, error)
}

// Auth requires a valid bearer token and records the caller as the request's
// principal. Parser errors that are already typed pass through unchanged.
func Auth(parser TokenParser, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := validators.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
				return
			}
			claims, err := parser.ParseToken(token)
			if err != nil {
				if pkgerrors.As(err) == nil {
					err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			p := principal{userID: claims.UserID.String(), role: string(claims.Role), token: token}
			ctx := withPrincipal(r.Context(), p)
			ctx = logg.WithFields(ctx, map[string]any{
				"user_id":    p.userID,
				"actor_role": p.role,
				"session_id": claims.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
