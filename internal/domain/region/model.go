package region

import (
	"bytes"
	"encoding/json"
	"time"
)

// Type identifies the widget rendered inside a region.
type Type string

const (
	TypeScheduling       Type = "scheduling"
	TypeReports          Type = "reports"
	TypeCustomerSearch   Type = "customer-search"
	TypeSettings         Type = "settings"
	TypeQuickActions     Type = "quick-actions"
	TypeAnalytics        Type = "analytics"
	TypeTeamOverview     Type = "team-overview"
	TypeFinancialSummary Type = "financial-summary"
	TypeCustom           Type = "custom"
)

// Types lists every supported region type.
var Types = []Type{
	TypeScheduling,
	TypeReports,
	TypeCustomerSearch,
	TypeSettings,
	TypeQuickActions,
	TypeAnalytics,
	TypeTeamOverview,
	TypeFinancialSummary,
	TypeCustom,
}

// Valid reports whether t is part of the closed type enumeration.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType converts a raw string into a Type.
func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Size is a default footprint in grid cells.
type Size struct {
	RowSpan int
	ColSpan int
}

var defaultSizes = map[Type]Size{
	TypeScheduling:       {RowSpan: 4, ColSpan: 8},
	TypeReports:          {RowSpan: 3, ColSpan: 6},
	TypeCustomerSearch:   {RowSpan: 1, ColSpan: 4},
	TypeSettings:         {RowSpan: 2, ColSpan: 4},
	TypeQuickActions:     {RowSpan: 1, ColSpan: 3},
	TypeAnalytics:        {RowSpan: 2, ColSpan: 6},
	TypeTeamOverview:     {RowSpan: 3, ColSpan: 4},
	TypeFinancialSummary: {RowSpan: 2, ColSpan: 4},
	TypeCustom:           {RowSpan: 2, ColSpan: 4},
}

// DefaultSize returns the footprint a new region of type t gets when the
// caller does not specify one.
func DefaultSize(t Type) Size {
	if size, ok := defaultSizes[t]; ok {
		return size
	}
	return Size{RowSpan: 1, ColSpan: 1}
}

// Region is a widget placed on the layout grid.
type Region struct {
	ID               string          `json:"id"`
	LayoutID         string          `json:"layout_id"`
	TenantID         string          `json:"tenant_id"`
	UserID           string          `json:"user_id"`
	Type             Type            `json:"region_type"`
	GridRow          int             `json:"grid_row"`
	GridCol          int             `json:"grid_col"`
	RowSpan          int             `json:"row_span"`
	ColSpan          int             `json:"col_span"`
	MinWidth         int             `json:"min_width"`
	MinHeight        int             `json:"min_height"`
	IsCollapsed      bool            `json:"is_collapsed"`
	IsLocked         bool            `json:"is_locked"`
	IsHiddenOnMobile bool            `json:"is_hidden_on_mobile"`
	Config           json.RawMessage `json:"config,omitempty"`
	WidgetConfig     json.RawMessage `json:"widget_config,omitempty"`
	DisplayOrder     int             `json:"display_order"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
}

// Deleted reports whether the region has been soft-deleted.
func (r Region) Deleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy of r. Config payloads and the deletion
// timestamp are copied so the result shares no memory with r.
func (r Region) Clone() Region {
	out := r
	if r.Config != nil {
		out.Config = append(json.RawMessage(nil), r.Config...)
	}
	if r.WidgetConfig != nil {
		out.WidgetConfig = append(json.RawMessage(nil), r.WidgetConfig...)
	}
	if r.DeletedAt != nil {
		deletedAt := *r.DeletedAt
		out.DeletedAt = &deletedAt
	}
	return out
}

// SameContent compares the user-visible state of two regions, ignoring
// bookkeeping timestamps.
func (r Region) SameContent(other Region) bool {
	return r.ID == other.ID &&
		r.Type == other.Type &&
		r.SamePlacement(other) &&
		r.MinWidth == other.MinWidth &&
		r.MinHeight == other.MinHeight &&
		r.IsCollapsed == other.IsCollapsed &&
		r.IsLocked == other.IsLocked &&
		r.IsHiddenOnMobile == other.IsHiddenOnMobile &&
		r.DisplayOrder == other.DisplayOrder &&
		r.Deleted() == other.Deleted() &&
		bytes.Equal(r.Config, other.Config) &&
		bytes.Equal(r.WidgetConfig, other.WidgetConfig)
}

// SamePlacement compares grid geometry only.
func (r Region) SamePlacement(other Region) bool {
	return r.GridRow == other.GridRow &&
		r.GridCol == other.GridCol &&
		r.RowSpan == other.RowSpan &&
		r.ColSpan == other.ColSpan
}

// CloneAll deep-copies a slice of regions.
func CloneAll(regions []Region) []Region {
	if regions == nil {
		return nil
	}
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = r.Clone()
	}
	return out
}

// Patch describes a partial region update. Nil fields are left unchanged.
type Patch struct {
	GridRow          *int            `json:"grid_row,omitempty"`
	GridCol          *int            `json:"grid_col,omitempty"`
	RowSpan          *int            `json:"row_span,omitempty"`
	ColSpan          *int            `json:"col_span,omitempty"`
	MinWidth         *int            `json:"min_width,omitempty"`
	MinHeight        *int            `json:"min_height,omitempty"`
	IsCollapsed      *bool           `json:"is_collapsed,omitempty"`
	IsLocked         *bool           `json:"is_locked,omitempty"`
	IsHiddenOnMobile *bool           `json:"is_hidden_on_mobile,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
	WidgetConfig     json.RawMessage `json:"widget_config,omitempty"`
	DisplayOrder     *int            `json:"display_order,omitempty"`
}

// Geometry reports whether the patch moves or resizes the region.
func (p Patch) Geometry() bool {
	return p.GridRow != nil || p.GridCol != nil || p.RowSpan != nil || p.ColSpan != nil
}

// OnlyLockToggle reports whether the patch touches nothing but the lock flag.
func (p Patch) OnlyLockToggle() bool {
	return p.IsLocked != nil &&
		!p.Geometry() &&
		p.MinWidth == nil && p.MinHeight == nil &&
		p.IsCollapsed == nil && p.IsHiddenOnMobile == nil &&
		p.Config == nil && p.WidgetConfig == nil &&
		p.DisplayOrder == nil
}

// Apply returns a copy of r with the patch applied.
func (p Patch) Apply(r Region) Region {
	out := r.Clone()
	if p.GridRow != nil {
		out.GridRow = *p.GridRow
	}
	if p.GridCol != nil {
		out.GridCol = *p.GridCol
	}
	if p.RowSpan != nil {
		out.RowSpan = *p.RowSpan
	}
	if p.ColSpan != nil {
		out.ColSpan = *p.ColSpan
	}
	if p.MinWidth != nil {
		out.MinWidth = *p.MinWidth
	}
	if p.MinHeight != nil {
		out.MinHeight = *p.MinHeight
	}
	if p.IsCollapsed != nil {
		out.IsCollapsed = *p.IsCollapsed
	}
	if p.IsLocked != nil {
		out.IsLocked = *p.IsLocked
	}
	if p.IsHiddenOnMobile != nil {
		out.IsHiddenOnMobile = *p.IsHiddenOnMobile
	}
	if p.Config != nil {
		out.Config = append(json.RawMessage(nil), p.Config...)
	}
	if p.WidgetConfig != nil {
		out.WidgetConfig = append(json.RawMessage(nil), p.WidgetConfig...)
	}
	if p.DisplayOrder != nil {
		out.DisplayOrder = *p.DisplayOrder
	}
	return out
}
