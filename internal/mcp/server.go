package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
)

// LayoutService defines layout operations needed by MCP.
type LayoutService interface {
	Create(ctx context.Context, tenantID string, req layout.CreateRequest) (*layout.Layout, error)
	List(ctx context.Context, tenantID, userID string) ([]layout.LayoutSummary, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Editor   *editor.Manager
	Layouts  LayoutService
	Activity ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      PrincipalResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// DefaultPrincipal acts for every call when auth is off.
	DefaultPrincipal permission.Principal
	Logger           *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "gridlayout",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Middleware added last runs first: auth before traffic logging.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	// Stdio mode: always disable auth (local only)
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultPrincipal))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}

	registerTools(server, cfg.Services)

	return server
}
