package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/gridlayout/internal/config"
	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/mcp"
	"github.com/rpggio/gridlayout/internal/sqlite"
	"github.com/rpggio/gridlayout/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "apikey" {
		if err := runAPIKey(context.Background(), cfg, os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "apikey: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == config.ModeStdio {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired services.
type app struct {
	db        *sqlite.DB
	apiKeys   *sqlite.APIKeyRepository
	manager   *editor.Manager
	hub       *transport.Hub
	mcpServer *sdkmcp.Server
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.db.Close()
	defer a.shutdown(logger)

	if cfg.Transport.Mode == config.ModeStdio {
		logger.Info("starting stdio transport", "auth", "disabled")
		// Run blocks until stdin closes or context is canceled
		err := a.mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return runHTTP(ctx, cfg, logger, a)
}

func build(cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	catalog := layout.DefaultCatalog()
	if cfg.Editor.CatalogPath != "" {
		catalog, err = layout.LoadCatalogFile(cfg.Editor.CatalogPath)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	layoutSvc := layout.NewService(sqlite.NewLayoutRepository(db), sqlite.NewRegionRepository(db), activitySvc, catalog, logger)
	versionSvc := version.NewService(sqlite.NewVersionRepository(db), activitySvc, logger)
	resolver := permission.NewResolver(sqlite.NewACLRepository(db), logger, cfg.Editor.DefaultRead)

	hub := transport.NewHub(transport.HubOptions{
		WriteTimeout: cfg.Collab.WriteTimeout,
		Authorize:    layoutReader(layoutSvc, resolver),
	}, logger)

	var dialer collab.Dialer
	if cfg.Collab.Enabled {
		dialer = hub
	}
	ctrl := editor.NewController(layoutSvc, versionSvc, resolver, activitySvc, dialer, logger, cfg.EditorOptions())

	a := &app{
		db:      db,
		apiKeys: sqlite.NewAPIKeyRepository(db),
		manager: editor.NewManager(ctrl),
		hub:     hub,
	}
	a.mcpServer = mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Editor:   a.manager,
			Layouts:  layoutSvc,
			Activity: activitySvc,
		},
		Resolver:      a.apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultPrincipal: permission.Principal{
			TenantID: cfg.Auth.DefaultTenant,
			UserID:   cfg.Auth.DefaultUser,
		},
		Logger: logger,
	})
	return a, nil
}

// layoutReader admits a collaborator when the layout exists in their
// tenant and they can read it.
func layoutReader(layouts *layout.Service, resolver *permission.Resolver) func(context.Context, permission.Principal, string) error {
	return func(ctx context.Context, p permission.Principal, layoutID string) error {
		l, err := layouts.Get(ctx, p.TenantID, layoutID)
		if err != nil {
			return err
		}
		return resolver.Require(ctx, permission.Resource{ID: l.ID, TenantID: l.TenantID, OwnerID: l.UserID}, p, permission.KindRead)
	}
}

func (a *app) shutdown(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.manager.CloseAll(ctx); err != nil {
		logger.Error("closing sessions", "error", err)
	}
	a.hub.Shutdown()
}

func runHTTP(ctx context.Context, cfg config.Config, logger *slog.Logger, a *app) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return a.mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	auth := transport.AuthMiddleware(a.apiKeys)
	if !cfg.Auth.Enabled {
		auth = transport.StaticPrincipal(permission.Principal{
			TenantID: cfg.Auth.DefaultTenant,
			UserID:   cfg.Auth.DefaultUser,
		})
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr: addr,
		Handler: transport.NewServer(transport.Config{
			MCP:      mcpHandler,
			Hub:      a.hub,
			Exporter: a.manager,
			Auth:     auth,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "auth", cfg.Auth.Enabled, "collab", cfg.Collab.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
