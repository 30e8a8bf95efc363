package mcp

import (
	"encoding/json"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
)

// Tool outputs are flattened views: schemas are inferred from these
// structs, so timestamps are RFC 3339 strings and config payloads are
// decoded JSON values.

type regionView struct {
	ID               string `json:"id"`
	Type             string `json:"region_type"`
	GridRow          int    `json:"grid_row"`
	GridCol          int    `json:"grid_col"`
	RowSpan          int    `json:"row_span"`
	ColSpan          int    `json:"col_span"`
	MinWidth         int    `json:"min_width"`
	MinHeight        int    `json:"min_height"`
	IsCollapsed      bool   `json:"is_collapsed"`
	IsLocked         bool   `json:"is_locked"`
	IsHiddenOnMobile bool   `json:"is_hidden_on_mobile"`
	Config           any    `json:"config,omitempty"`
	WidgetConfig     any    `json:"widget_config,omitempty"`
	DisplayOrder     int    `json:"display_order"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func toRegionView(r region.Region) regionView {
	return regionView{
		ID:               r.ID,
		Type:             string(r.Type),
		GridRow:          r.GridRow,
		GridCol:          r.GridCol,
		RowSpan:          r.RowSpan,
		ColSpan:          r.ColSpan,
		MinWidth:         r.MinWidth,
		MinHeight:        r.MinHeight,
		IsCollapsed:      r.IsCollapsed,
		IsLocked:         r.IsLocked,
		IsHiddenOnMobile: r.IsHiddenOnMobile,
		Config:           decodeRaw(r.Config),
		WidgetConfig:     decodeRaw(r.WidgetConfig),
		DisplayOrder:     r.DisplayOrder,
		UpdatedAt:        formatTime(r.UpdatedAt),
	}
}

func toRegionViews(regions []region.Region) []regionView {
	out := make([]regionView, 0, len(regions))
	for _, r := range regions {
		out = append(out, toRegionView(r))
	}
	return out
}

type statusView struct {
	Save        string `json:"save"`
	LastError   string `json:"last_error,omitempty"`
	LastSavedAt string `json:"last_saved_at,omitempty"`
	Connection  string `json:"connection,omitempty"`
	Conflicts   int    `json:"conflicts"`
	Queued      int    `json:"queued"`
	CanUndo     bool   `json:"can_undo"`
	CanRedo     bool   `json:"can_redo"`
}

func toStatusView(info editor.StatusInfo) statusView {
	v := statusView{
		Save:       string(info.Save),
		LastError:  info.LastError,
		Connection: info.Connection,
		Conflicts:  info.Conflicts,
		Queued:     info.Queued,
		CanUndo:    info.CanUndo,
		CanRedo:    info.CanRedo,
	}
	if info.LastSavedAt != nil {
		v.LastSavedAt = formatTime(*info.LastSavedAt)
	}
	return v
}

type conflictView struct {
	RegionID      string      `json:"region_id"`
	Mine          *regionView `json:"mine,omitempty"`
	Theirs        *regionView `json:"theirs,omitempty"`
	TheirClientID string      `json:"their_client_id,omitempty"`
	DetectedAt    string      `json:"detected_at"`
}

func toConflictView(c collab.Conflict) conflictView {
	v := conflictView{
		RegionID:      c.RegionID,
		TheirClientID: c.TheirClientID,
		DetectedAt:    formatTime(c.DetectedAt),
	}
	if c.Mine != nil {
		mine := toRegionView(*c.Mine)
		v.Mine = &mine
	}
	if c.Theirs != nil {
		theirs := toRegionView(*c.Theirs)
		v.Theirs = &theirs
	}
	return v
}

type versionView struct {
	ID           string `json:"id"`
	Number       int    `json:"version_number"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	RegionCount  int    `json:"region_count"`
	IsCurrent    bool   `json:"is_current,omitempty"`
	RevertedFrom string `json:"reverted_from,omitempty"`
	CreatedAt    string `json:"created_at"`
	PublishedAt  string `json:"published_at,omitempty"`
}

func toVersionView(v *version.Version) versionView {
	out := versionView{
		ID:          v.ID,
		Number:      v.Number,
		Status:      string(v.Status),
		Notes:       v.Notes,
		RegionCount: len(v.Regions),
		CreatedAt:   formatTime(v.CreatedAt),
	}
	if v.RevertedFrom != nil {
		out.RevertedFrom = *v.RevertedFrom
	}
	if v.PublishedAt != nil {
		out.PublishedAt = formatTime(*v.PublishedAt)
	}
	return out
}

func toSummaryView(s version.Summary) versionView {
	out := versionView{
		ID:          s.ID,
		Number:      s.Number,
		Status:      string(s.Status),
		Notes:       s.Notes,
		RegionCount: s.RegionCount,
		IsCurrent:   s.IsCurrent,
		CreatedAt:   formatTime(s.CreatedAt),
	}
	if s.PublishedAt != nil {
		out.PublishedAt = formatTime(*s.PublishedAt)
	}
	return out
}

type aclView struct {
	ID            string `json:"id"`
	TargetID      string `json:"target_id"`
	PrincipalType string `json:"principal_type"`
	PrincipalID   string `json:"principal_id"`
	Read          bool   `json:"read"`
	Edit          bool   `json:"edit"`
	Share         bool   `json:"share"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toACLView(e permission.Entry) aclView {
	return aclView{
		ID:            e.ID,
		TargetID:      e.RegionID,
		PrincipalType: string(e.PrincipalType),
		PrincipalID:   e.PrincipalID,
		Read:          e.Permissions.Read,
		Edit:          e.Permissions.Edit,
		Share:         e.Permissions.Share,
		CreatedAt:     formatTime(e.CreatedAt),
	}
}

type layoutView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsDefault   bool   `json:"is_default"`
	RegionCount int    `json:"region_count"`
	Versions    int    `json:"versions"`
	UpdatedAt   string `json:"updated_at"`
}

func toLayoutView(s layout.LayoutSummary) layoutView {
	return layoutView{
		ID:          s.ID,
		Name:        s.Name,
		IsDefault:   s.IsDefault,
		RegionCount: s.RegionCount,
		Versions:    s.Versions,
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}

type activityView struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	RegionID  string `json:"region_id,omitempty"`
	VersionID string `json:"version_id,omitempty"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

func toActivityView(e activity.ActivityEntry) activityView {
	v := activityView{
		ID:        e.ID,
		Type:      string(e.ActivityType),
		UserID:    e.UserID,
		Summary:   e.Summary,
		CreatedAt: formatTime(e.CreatedAt),
	}
	if e.RegionID != nil {
		v.RegionID = *e.RegionID
	}
	if e.VersionID != nil {
		v.VersionID = *e.VersionID
	}
	return v
}

func decodeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func encodeConfig(v map[string]any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
