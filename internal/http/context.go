package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/persistence"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	scopeContextKey     contextKey = "scope"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithScope attaches the row visibility derived for the caller.
func ContextWithScope(ctx context.Context, scope persistence.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, scope)
}

// ScopeFromContext returns the caller's row visibility. Without one, the
// caller is restricted to rows owned by user 0, which matches nothing.
func ScopeFromContext(ctx context.Context) persistence.Scope {
	if scope, ok := ctx.Value(scopeContextKey).(persistence.Scope); ok {
		return scope
	}
	return persistence.OwnedBy(0)
}

// idParam parses a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
