package version

import (
	"context"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
)

// Repository provides persistence for layout versions.
type Repository interface {
	// Create stores v and assigns the next version number for its layout.
	Create(ctx context.Context, tenantID string, v *Version) error
	Get(ctx context.Context, tenantID, id string) (*Version, error)
	// List returns a layout's versions, newest first.
	List(ctx context.Context, tenantID, layoutID string) ([]Version, error)
	// UpdateStatus moves a version from one status to another and returns
	// repository.ErrConflict if it is no longer in from.
	UpdateStatus(ctx context.Context, tenantID, id string, from, to Status) error
	// Publish archives the layout's published version, publishes id and
	// points the layout at it, in one transaction.
	Publish(ctx context.Context, tenantID, id, notes string, at time.Time) error
	CurrentID(ctx context.Context, tenantID, layoutID string) (string, error)
}

// ActivityRepository records version lifecycle events.
type ActivityRepository interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}
