package middleware

import "context"

type principalKey struct{}

// principal is who an authenticated request acts as.
type principal struct {
	userID string
	role   string
	token  string
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

// UserIDFromContext is empty outside authenticated routes.
func UserIDFromContext(ctx context.Context) string {
	return principalFrom(ctx).userID
}

func RoleFromContext(ctx context.Context) string {
	return principalFrom(ctx).role
}

// TokenFromContext returns the bearer token the request was authenticated with.
func TokenFromContext(ctx context.Context) string {
	return principalFrom(ctx).token
}

// WithUserID sets the acting user, keeping any role and token already present.
func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.userID = userID
	return withPrincipal(ctx, p)
}
