package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeLayoutCreated    ActivityType = "layout_created"
	TypeLayoutImported   ActivityType = "layout_imported"
	TypeRegionAdded      ActivityType = "region_added"
	TypeRegionMoved      ActivityType = "region_moved"
	TypeRegionResized    ActivityType = "region_resized"
	TypeRegionUpdated    ActivityType = "region_updated"
	TypeRegionDeleted    ActivityType = "region_deleted"
	TypeVersionCreated   ActivityType = "version_created"
	TypeVersionPreviewed ActivityType = "version_previewed"
	TypeVersionPublished ActivityType = "version_published"
	TypeVersionReverted  ActivityType = "version_reverted"
	TypeACLChanged       ActivityType = "acl_changed"
	TypeConflictDetected ActivityType = "conflict_detected"
	TypeConflictResolved ActivityType = "conflict_resolved"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	LayoutID     string       `json:"layout_id"`
	UserID       string       `json:"user_id,omitempty"`
	RegionID     *string      `json:"region_id,omitempty"`
	VersionID    *string      `json:"version_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
