package layout

import "time"

// Layout is one user's dashboard within a tenant.
type Layout struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	Role             string    `json:"role,omitempty"`
	IsDefault        bool      `json:"is_default"`
	CurrentVersionID *string   `json:"current_version_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LayoutSummary is a lightweight representation for listing
type LayoutSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsDefault   bool      `json:"is_default"`
	RegionCount int       `json:"region_count"`
	Versions    int       `json:"versions"`
	UpdatedAt   time.Time `json:"updated_at"`
}
