package layout

import (
	"context"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

// Repository provides persistence for layouts.
type Repository interface {
	Create(ctx context.Context, tenantID string, l *Layout) error
	Get(ctx context.Context, tenantID, id string) (*Layout, error)
	GetDefault(ctx context.Context, tenantID, userID string) (*Layout, error)
	List(ctx context.Context, tenantID, userID string) ([]LayoutSummary, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// RegionRepository persists the region set of a layout.
type RegionRepository interface {
	ListByLayout(ctx context.Context, tenantID, layoutID string, includeDeleted bool) ([]region.Region, error)
	// ReplaceAll upserts regions and soft-deletes stored regions missing
	// from the set.
	ReplaceAll(ctx context.Context, tenantID, layoutID string, regions []region.Region) error
}

// ActivityRepository records layout events.
type ActivityRepository interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}
