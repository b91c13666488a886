package server

import (
	"context"

	"inlineedit/internal/store"
)

type authContextKey struct{}

// authPrincipal is the authenticated caller of one request. AuthType is
// authTypeAPIKey or authTypeSession.
type authPrincipal struct {
	AuthType string
	User     *store.User
}

func contextWithAuthPrincipal(ctx context.Context, principal authPrincipal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

func authPrincipalFromContext(ctx context.Context) (authPrincipal, bool) {
	if ctx == nil {
		return authPrincipal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(authPrincipal)
	return principal, ok && principal.User != nil
}

// currentUser returns the authenticated user, or nil for anonymous requests.
func currentUser(ctx context.Context) *store.User {
	principal, ok := authPrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	return principal.User
}
