package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
)

// Exporter produces a layout export for a principal.
type Exporter interface {
	Export(ctx context.Context, req editor.OpenRequest) (editor.Document, error)
}

// Config wires the HTTP surface. Nil handlers leave their routes out.
type Config struct {
	// MCP serves /mcp. It authenticates on its own.
	MCP      http.Handler
	Hub      *Hub
	Exporter Exporter
	// Auth guards the collaboration and export routes.
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	exporter Exporter
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{exporter: cfg.Exporter, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", srv.handleHealth)

	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		if cfg.Hub != nil {
			r.Get("/collab/{layoutID}", cfg.Hub.ServeWS)
		}
		if cfg.Exporter != nil {
			r.Get("/layouts/{layoutID}/export", srv.handleExport)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	layoutID := chi.URLParam(r, "layoutID")

	doc, err := s.exporter.Export(r.Context(), editor.OpenRequest{
		TenantID:  p.TenantID,
		LayoutID:  layoutID,
		Principal: p,
		User:      collab.User{ID: p.UserID, Name: p.UserID},
	})
	if err != nil {
		s.logger.Warn("export failed", "layout_id", layoutID, "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="layout-%s.json"`, layoutID))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, permission.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, layout.ErrLayoutNotFound):
		http.Error(w, "layout not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
