package version

import (
	"time"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

// Status is the lifecycle state of a version row.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPreview   Status = "PREVIEW"
	StatusPublished Status = "PUBLISHED"
	// StatusArchived marks a version that was published and later superseded.
	StatusArchived Status = "ARCHIVED"
)

// Version is an immutable snapshot of a layout's region set.
type Version struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	LayoutID     string          `json:"layout_id"`
	Number       int             `json:"version_number"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	Regions      []region.Region `json:"regions"`
	CreatedBy    string          `json:"created_by,omitempty"`
	RevertedFrom *string         `json:"reverted_from,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PublishedAt  *time.Time      `json:"published_at,omitempty"`
}

// Summary is the listing form of a version.
type Summary struct {
	ID          string     `json:"id"`
	Number      int        `json:"version_number"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	RegionCount int        `json:"region_count"`
	IsCurrent   bool       `json:"is_current"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Summarize converts a version into its listing form.
func (v Version) Summarize(currentID string) Summary {
	return Summary{
		ID:          v.ID,
		Number:      v.Number,
		Status:      v.Status,
		Notes:       v.Notes,
		RegionCount: len(v.Regions),
		IsCurrent:   v.ID == currentID,
		CreatedAt:   v.CreatedAt,
		PublishedAt: v.PublishedAt,
	}
}
