package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/repository"
)

// Service is the storage collaborator of the layout engine: it finds or
// seeds layouts and loads and saves their region sets.
type Service struct {
	layouts    Repository
	regions    RegionRepository
	activities ActivityRepository
	catalog    *Catalog
	logger     *slog.Logger
}

// NewService creates a new layout service. A nil catalog uses the built-in
// role defaults.
func NewService(layouts Repository, regions RegionRepository, activities ActivityRepository, catalog *Catalog, logger *slog.Logger) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		layouts:    layouts,
		regions:    regions,
		activities: activities,
		catalog:    catalog,
		logger:     logger,
	}
}

// CreateRequest defines layout creation inputs.
type CreateRequest struct {
	ID        string
	UserID    string
	Name      string
	Role      string
	IsDefault bool
	Seed      bool
}

// Create creates a layout, optionally seeded from the role catalog.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*Layout, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	l := &Layout{
		ID:        id,
		TenantID:  tenantID,
		UserID:    req.UserID,
		Name:      req.Name,
		Role:      req.Role,
		IsDefault: req.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var seed []region.Region
	if req.Seed {
		placed, err := Place(s.catalog.RoleDefaults(req.Role))
		if err != nil {
			return nil, fmt.Errorf("seeding layout: %w", err)
		}
		for i := range placed {
			placed[i].LayoutID = l.ID
			placed[i].TenantID = tenantID
			placed[i].UserID = req.UserID
			placed[i].CreatedAt = now
			placed[i].UpdatedAt = now
		}
		seed = placed
	}

	if err := s.layouts.Create(ctx, tenantID, l); err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}

	// An unseeded layout must not survive as the user's default.
	if len(seed) > 0 {
		if err := s.regions.ReplaceAll(ctx, tenantID, l.ID, seed); err != nil {
			if derr := s.layouts.Delete(ctx, tenantID, l.ID); derr != nil {
				s.logger.Error("removing unseeded layout", "layout_id", l.ID, "error", derr)
			}
			return nil, fmt.Errorf("seeding layout: %w", err)
		}
	}
	seeded := len(seed)

	s.logger.Info("layout created", "layout_id", l.ID, "user_id", l.UserID, "role", req.Role, "seeded", seeded)
	if s.activities != nil {
		_ = s.activities.Log(ctx, tenantID, &activity.ActivityEntry{
			LayoutID:     l.ID,
			UserID:       l.UserID,
			ActivityType: activity.TypeLayoutCreated,
			Summary:      fmt.Sprintf("created layout %q with %d regions", l.Name, seeded),
		})
	}
	return l, nil
}

// Get fetches a layout by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Layout, error) {
	l, err := s.layouts.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLayoutNotFound
		}
		return nil, fmt.Errorf("getting layout: %w", err)
	}
	return l, nil
}

// GetOrCreateDefault returns the user's default layout, creating and seeding
// it from the role defaults on first use.
func (s *Service) GetOrCreateDefault(ctx context.Context, tenantID, userID, role string) (*Layout, error) {
	l, err := s.layouts.GetDefault(ctx, tenantID, userID)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("getting default layout: %w", err)
	}

	return s.Create(ctx, tenantID, CreateRequest{
		UserID:    userID,
		Name:      "My Dashboard",
		Role:      role,
		IsDefault: true,
		Seed:      true,
	})
}

// List returns layout summaries for a user.
func (s *Service) List(ctx context.Context, tenantID, userID string) ([]LayoutSummary, error) {
	return s.layouts.List(ctx, tenantID, userID)
}

// LoadRegions returns the live regions of a layout.
func (s *Service) LoadRegions(ctx context.Context, tenantID, layoutID string) ([]region.Region, error) {
	regions, err := s.regions.ListByLayout(ctx, tenantID, layoutID, false)
	if err != nil {
		return nil, fmt.Errorf("loading regions: %w", err)
	}
	return regions, nil
}

// SaveRegions persists the full region set of a layout. Soft-deleted
// regions are kept as deleted rows.
func (s *Service) SaveRegions(ctx context.Context, tenantID, layoutID string, regions []region.Region) error {
	if strings.TrimSpace(layoutID) == "" {
		return ErrInvalidInput
	}
	if err := s.regions.ReplaceAll(ctx, tenantID, layoutID, regions); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return ErrLayoutNotFound
		}
		return fmt.Errorf("saving regions: %w", err)
	}
	s.logger.Debug("regions saved", "layout_id", layoutID, "count", len(regions))
	return nil
}

// Catalog returns the role-default catalog in use.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}
