package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/transport"
)

type contextKey int

const principalKey contextKey = iota

// getPrincipal extracts the acting principal from context.
func getPrincipal(ctx context.Context) (permission.Principal, bool) {
	p, ok := ctx.Value(principalKey).(permission.Principal)
	return p, ok
}

// PrincipalResolver resolves the acting principal from a bearer token.
type PrincipalResolver = transport.PrincipalResolver

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver PrincipalResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			token := transport.BearerToken(extra.Header.Get("Authorization"))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			p, err := resolver.ResolvePrincipal(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if p.TenantID == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			ctx = context.WithValue(ctx, principalKey, p)
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware injects a fixed principal when auth is disabled.
func noAuthMiddleware(p permission.Principal) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = context.WithValue(ctx, principalKey, p)
			return next(ctx, method, req)
		}
	}
}
