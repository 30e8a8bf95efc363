package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/gridlayout/internal/domain/permission"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type principalKey struct{}

// PrincipalResolver resolves the acting principal from a bearer token.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (permission.Principal, error)
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p permission.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal from context, if present.
func PrincipalFromContext(ctx context.Context) (permission.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(permission.Principal)
	return p, ok
}

// TenantFromContext returns the tenant ID from context, if present.
func TenantFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.TenantID == "" {
		return "", false
	}
	return p.TenantID, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			p, err := resolver.ResolvePrincipal(r.Context(), token)
			if err != nil || p.TenantID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// StaticPrincipal injects a fixed principal; used when auth is disabled.
func StaticPrincipal(p permission.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
