package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/transport"
)

const defaultRole = "default"

type toolset struct {
	editor   *editor.Manager
	layouts  LayoutService
	activity ActivityService
}

// registerTools adds every layout tool to server.
func registerTools(server *sdkmcp.Server, svcs Services) {
	t := &toolset{editor: svcs.Editor, layouts: svcs.Layouts, activity: svcs.Activity}

	// Layouts
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "list_layouts", Description: "List your layouts"}, t.listLayouts)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "create_layout", Description: "Create a layout, optionally seeded with your role's default regions"}, t.createLayout)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "open_layout", Description: "Open a layout for editing and return its regions and status. Omit layout_id for your default layout."}, t.openLayout)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "close_layout", Description: "Flush pending saves and close your session on a layout"}, t.closeLayout)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "layout_status", Description: "Report save state, collaboration state and open conflicts"}, t.layoutStatus)

	// Regions
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "list_regions", Description: "List the live regions of a layout in display order"}, t.listRegions)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "add_region", Description: "Add a region. Omit grid_row and grid_col to place it in the first free slot."}, t.addRegion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "move_region", Description: "Move a region to a new top-left cell"}, t.moveRegion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "resize_region", Description: "Grow or shrink a region by whole grid cells"}, t.resizeRegion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "update_region", Description: "Change region fields; omitted fields are left alone"}, t.updateRegion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "delete_region", Description: "Delete a region (undoable)"}, t.deleteRegion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "undo", Description: "Undo the last edit"}, t.undo)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "redo", Description: "Redo the last undone edit"}, t.redo)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "export_layout", Description: "Export the regions you can read as a JSON document"}, t.exportLayout)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "import_layout", Description: "Replace the layout's regions with those in an exported JSON document. Invalid entries are skipped and reported."}, t.importLayout)

	// Versions
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "save_draft", Description: "Snapshot the current regions as a draft version"}, t.saveDraft)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "preview_version", Description: "Move a draft version to preview"}, t.previewVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "publish_version", Description: "Publish a draft or preview version and make it current"}, t.publishVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "revert_version", Description: "Restore an older version as a new draft"}, t.revertVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "list_versions", Description: "List versions newest first"}, t.listVersions)

	// Access
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "check_permission", Description: "Show your effective rights on a region or the layout"}, t.checkPermission)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "list_acl", Description: "List grants on a region or the layout"}, t.listACL)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "set_acl", Description: "Grant rights on a region or the layout to a user, role or team"}, t.setACL)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "remove_acl", Description: "Revoke one grant"}, t.removeACL)

	// Collaboration
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "resolve_conflict", Description: "Resolve a conflict with keep_mine, take_theirs or merge"}, t.resolveConflict)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "recent_activity", Description: "List recent activity on a layout"}, t.recentActivity)
}

// session returns the caller's open session on layoutID, opening it if
// needed. An empty layoutID selects the caller's default layout.
func (t *toolset) session(ctx context.Context, layoutID string) (*editor.Session, error) {
	p, ok := getPrincipal(ctx)
	if !ok || p.TenantID == "" {
		return nil, transport.ErrUnauthorized
	}
	if layoutID == "" {
		return t.editor.OpenDefault(ctx, p.TenantID, p, roleOf(p))
	}
	return t.editor.Open(ctx, editor.OpenRequest{
		TenantID:  p.TenantID,
		LayoutID:  layoutID,
		Principal: p,
		User:      collab.User{ID: p.UserID, Name: p.UserID},
	})
}

func roleOf(p permission.Principal) string {
	if len(p.Roles) > 0 {
		return p.Roles[0]
	}
	return defaultRole
}

func (t *toolset) ctrl() *editor.Controller {
	return t.editor.Controller()
}

type layoutInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
}

type regionInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID string `json:"region_id" jsonschema:"region id"`
}

type regionOutput struct {
	LayoutID string     `json:"layout_id"`
	Region   regionView `json:"region"`
}

type regionsOutput struct {
	LayoutID string       `json:"layout_id"`
	Regions  []regionView `json:"regions"`
}

type emptyInput struct{}

// Layouts

type listLayoutsOutput struct {
	Layouts []layoutView `json:"layouts"`
}

func (t *toolset) listLayouts(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, listLayoutsOutput, error) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return nil, listLayoutsOutput{}, toolError(transport.ErrUnauthorized)
	}
	summaries, err := t.layouts.List(ctx, p.TenantID, p.UserID)
	if err != nil {
		return nil, listLayoutsOutput{}, toolError(err)
	}
	out := listLayoutsOutput{Layouts: make([]layoutView, 0, len(summaries))}
	for _, s := range summaries {
		out.Layouts = append(out.Layouts, toLayoutView(s))
	}
	return nil, out, nil
}

type createLayoutInput struct {
	ID   string `json:"id,omitempty" jsonschema:"layout id; generated when omitted"`
	Name string `json:"name" jsonschema:"display name"`
	Role string `json:"role,omitempty" jsonschema:"role whose default regions seed the layout"`
	Seed bool   `json:"seed,omitempty" jsonschema:"seed the layout with the role's default regions"`
}

type createLayoutOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

func (t *toolset) createLayout(ctx context.Context, _ *sdkmcp.CallToolRequest, in createLayoutInput) (*sdkmcp.CallToolResult, createLayoutOutput, error) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return nil, createLayoutOutput{}, toolError(transport.ErrUnauthorized)
	}
	role := in.Role
	if role == "" {
		role = roleOf(p)
	}
	l, err := t.layouts.Create(ctx, p.TenantID, layout.CreateRequest{
		ID:     in.ID,
		UserID: p.UserID,
		Name:   in.Name,
		Role:   role,
		Seed:   in.Seed,
	})
	if err != nil {
		return nil, createLayoutOutput{}, toolError(err)
	}
	return nil, createLayoutOutput{ID: l.ID, Name: l.Name, Role: l.Role}, nil
}

type openLayoutOutput struct {
	LayoutID  string         `json:"layout_id"`
	Regions   []regionView   `json:"regions"`
	Status    statusView     `json:"status"`
	Conflicts []conflictView `json:"conflicts,omitempty"`
}

func snapshot(sess *editor.Session) openLayoutOutput {
	out := openLayoutOutput{
		LayoutID: sess.LayoutID,
		Regions:  toRegionViews(sess.Regions()),
		Status:   toStatusView(sess.Status()),
	}
	if s := sess.Sync(); s != nil {
		for _, c := range s.Conflicts() {
			out.Conflicts = append(out.Conflicts, toConflictView(c))
		}
	}
	return out
}

func (t *toolset) openLayout(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, openLayoutOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, openLayoutOutput{}, toolError(err)
	}
	return nil, snapshot(sess), nil
}

func (t *toolset) layoutStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, openLayoutOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, openLayoutOutput{}, toolError(err)
	}
	out := snapshot(sess)
	out.Regions = nil
	return nil, out, nil
}

type closeLayoutOutput struct {
	LayoutID string `json:"layout_id"`
	Closed   bool   `json:"closed"`
}

func (t *toolset) closeLayout(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, closeLayoutOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, closeLayoutOutput{}, toolError(err)
	}
	if err := t.editor.Close(ctx, sess.TenantID, sess.LayoutID, sess.Principal.UserID); err != nil {
		return nil, closeLayoutOutput{}, toolError(err)
	}
	return nil, closeLayoutOutput{LayoutID: sess.LayoutID, Closed: true}, nil
}

// Regions

func (t *toolset) listRegions(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, regionsOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionsOutput{}, toolError(err)
	}
	return nil, regionsOutput{LayoutID: sess.LayoutID, Regions: toRegionViews(sess.Regions())}, nil
}

type addRegionInput struct {
	LayoutID         string         `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	ID               string         `json:"id,omitempty" jsonschema:"region id; generated when omitted"`
	Type             string         `json:"region_type" jsonschema:"one of scheduling, reports, customer-search, settings, quick-actions, analytics, team-overview, financial-summary, custom"`
	GridRow          *int           `json:"grid_row,omitempty" jsonschema:"top row; omit with grid_col for automatic placement"`
	GridCol          *int           `json:"grid_col,omitempty" jsonschema:"left column 0..11"`
	RowSpan          int            `json:"row_span,omitempty" jsonschema:"rows covered, 1..20"`
	ColSpan          int            `json:"col_span,omitempty" jsonschema:"columns covered, 1..12"`
	MinWidth         int            `json:"min_width,omitempty" jsonschema:"minimum width in pixels, 100..2000"`
	MinHeight        int            `json:"min_height,omitempty" jsonschema:"minimum height in pixels, 100..2000"`
	IsCollapsed      bool           `json:"is_collapsed,omitempty"`
	IsHiddenOnMobile bool           `json:"is_hidden_on_mobile,omitempty"`
	Config           map[string]any `json:"config,omitempty" jsonschema:"region configuration"`
	WidgetConfig     map[string]any `json:"widget_config,omitempty" jsonschema:"widget configuration"`
}

func (t *toolset) addRegion(ctx context.Context, _ *sdkmcp.CallToolRequest, in addRegionInput) (*sdkmcp.CallToolResult, regionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	cfg, err := encodeConfig(in.Config)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	widgetCfg, err := encodeConfig(in.WidgetConfig)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	r, err := t.ctrl().AddRegion(ctx, sess, editor.AddRequest{
		ID:               in.ID,
		Type:             region.Type(in.Type),
		Row:              in.GridRow,
		Col:              in.GridCol,
		RowSpan:          in.RowSpan,
		ColSpan:          in.ColSpan,
		MinWidth:         in.MinWidth,
		MinHeight:        in.MinHeight,
		IsCollapsed:      in.IsCollapsed,
		IsHiddenOnMobile: in.IsHiddenOnMobile,
		Config:           cfg,
		WidgetConfig:     widgetCfg,
	})
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	return nil, regionOutput{LayoutID: sess.LayoutID, Region: toRegionView(r)}, nil
}

type moveRegionInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID string `json:"region_id" jsonschema:"region id"`
	GridRow  int    `json:"grid_row" jsonschema:"new top row"`
	GridCol  int    `json:"grid_col" jsonschema:"new left column"`
}

func (t *toolset) moveRegion(ctx context.Context, _ *sdkmcp.CallToolRequest, in moveRegionInput) (*sdkmcp.CallToolResult, regionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	r, err := t.ctrl().MoveRegion(ctx, sess, in.RegionID, in.GridRow, in.GridCol)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	return nil, regionOutput{LayoutID: sess.LayoutID, Region: toRegionView(r)}, nil
}

type resizeRegionInput struct {
	LayoutID  string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID  string `json:"region_id" jsonschema:"region id"`
	DeltaCols int    `json:"delta_cols,omitempty" jsonschema:"columns to add (negative shrinks)"`
	DeltaRows int    `json:"delta_rows,omitempty" jsonschema:"rows to add (negative shrinks)"`
}

func (t *toolset) resizeRegion(ctx context.Context, _ *sdkmcp.CallToolRequest, in resizeRegionInput) (*sdkmcp.CallToolResult, regionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	r, err := t.ctrl().ResizeRegion(ctx, sess, in.RegionID, in.DeltaCols, in.DeltaRows)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	return nil, regionOutput{LayoutID: sess.LayoutID, Region: toRegionView(r)}, nil
}

type updateRegionInput struct {
	LayoutID         string         `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID         string         `json:"region_id" jsonschema:"region id"`
	GridRow          *int           `json:"grid_row,omitempty"`
	GridCol          *int           `json:"grid_col,omitempty"`
	RowSpan          *int           `json:"row_span,omitempty"`
	ColSpan          *int           `json:"col_span,omitempty"`
	MinWidth         *int           `json:"min_width,omitempty"`
	MinHeight        *int           `json:"min_height,omitempty"`
	IsCollapsed      *bool          `json:"is_collapsed,omitempty"`
	IsLocked         *bool          `json:"is_locked,omitempty"`
	IsHiddenOnMobile *bool          `json:"is_hidden_on_mobile,omitempty"`
	Config           map[string]any `json:"config,omitempty"`
	WidgetConfig     map[string]any `json:"widget_config,omitempty"`
	DisplayOrder     *int           `json:"display_order,omitempty"`
}

func (t *toolset) updateRegion(ctx context.Context, _ *sdkmcp.CallToolRequest, in updateRegionInput) (*sdkmcp.CallToolResult, regionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	cfg, err := encodeConfig(in.Config)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	widgetCfg, err := encodeConfig(in.WidgetConfig)
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	r, err := t.ctrl().UpdateRegion(ctx, sess, in.RegionID, region.Patch{
		GridRow:          in.GridRow,
		GridCol:          in.GridCol,
		RowSpan:          in.RowSpan,
		ColSpan:          in.ColSpan,
		MinWidth:         in.MinWidth,
		MinHeight:        in.MinHeight,
		IsCollapsed:      in.IsCollapsed,
		IsLocked:         in.IsLocked,
		IsHiddenOnMobile: in.IsHiddenOnMobile,
		Config:           cfg,
		WidgetConfig:     widgetCfg,
		DisplayOrder:     in.DisplayOrder,
	})
	if err != nil {
		return nil, regionOutput{}, toolError(err)
	}
	return nil, regionOutput{LayoutID: sess.LayoutID, Region: toRegionView(r)}, nil
}

type deleteRegionOutput struct {
	LayoutID string `json:"layout_id"`
	RegionID string `json:"region_id"`
	Deleted  bool   `json:"deleted"`
}

func (t *toolset) deleteRegion(ctx context.Context, _ *sdkmcp.CallToolRequest, in regionInput) (*sdkmcp.CallToolResult, deleteRegionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, deleteRegionOutput{}, toolError(err)
	}
	if err := t.ctrl().DeleteRegion(ctx, sess, in.RegionID); err != nil {
		return nil, deleteRegionOutput{}, toolError(err)
	}
	return nil, deleteRegionOutput{LayoutID: sess.LayoutID, RegionID: in.RegionID, Deleted: true}, nil
}

func (t *toolset) undo(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, regionsOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionsOutput{}, toolError(err)
	}
	regions, err := t.ctrl().Undo(ctx, sess)
	if err != nil {
		return nil, regionsOutput{}, toolError(err)
	}
	return nil, regionsOutput{LayoutID: sess.LayoutID, Regions: toRegionViews(regions)}, nil
}

func (t *toolset) redo(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, regionsOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, regionsOutput{}, toolError(err)
	}
	regions, err := t.ctrl().Redo(ctx, sess)
	if err != nil {
		return nil, regionsOutput{}, toolError(err)
	}
	return nil, regionsOutput{LayoutID: sess.LayoutID, Regions: toRegionViews(regions)}, nil
}

type exportOutput struct {
	LayoutID    string `json:"layout_id"`
	RegionCount int    `json:"region_count"`
	Document    string `json:"document" jsonschema:"exported JSON document, accepted as-is by import_layout"`
}

func (t *toolset) exportLayout(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, exportOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, exportOutput{}, toolError(err)
	}
	doc, err := t.ctrl().Export(ctx, sess)
	if err != nil {
		return nil, exportOutput{}, toolError(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, exportOutput{}, toolError(err)
	}
	return nil, exportOutput{LayoutID: sess.LayoutID, RegionCount: doc.Metadata.RegionCount, Document: string(data)}, nil
}

type importInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	Document string `json:"document" jsonschema:"JSON document with a regions array, as produced by export_layout"`
}

type importOutput struct {
	LayoutID string           `json:"layout_id"`
	Accepted []regionView     `json:"accepted"`
	Dropped  []editor.Dropped `json:"dropped,omitempty"`
}

func (t *toolset) importLayout(ctx context.Context, _ *sdkmcp.CallToolRequest, in importInput) (*sdkmcp.CallToolResult, importOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, importOutput{}, toolError(err)
	}
	result, err := t.ctrl().Import(ctx, sess, []byte(in.Document))
	if err != nil {
		return nil, importOutput{}, toolError(err)
	}
	return nil, importOutput{
		LayoutID: sess.LayoutID,
		Accepted: toRegionViews(result.Accepted),
		Dropped:  result.Dropped,
	}, nil
}

// Versions

type saveDraftInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	Notes    string `json:"notes,omitempty" jsonschema:"what changed"`
}

type versionInput struct {
	LayoutID  string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	VersionID string `json:"version_id" jsonschema:"version id"`
	Notes     string `json:"notes,omitempty" jsonschema:"publish notes"`
}

type versionOutput struct {
	LayoutID string      `json:"layout_id"`
	Version  versionView `json:"version"`
}

func (t *toolset) saveDraft(ctx context.Context, _ *sdkmcp.CallToolRequest, in saveDraftInput) (*sdkmcp.CallToolResult, versionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	v, err := t.ctrl().SaveDraft(ctx, sess, in.Notes)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	return nil, versionOutput{LayoutID: sess.LayoutID, Version: toVersionView(v)}, nil
}

func (t *toolset) previewVersion(ctx context.Context, _ *sdkmcp.CallToolRequest, in versionInput) (*sdkmcp.CallToolResult, versionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	v, err := t.ctrl().Preview(ctx, sess, in.VersionID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	return nil, versionOutput{LayoutID: sess.LayoutID, Version: toVersionView(v)}, nil
}

func (t *toolset) publishVersion(ctx context.Context, _ *sdkmcp.CallToolRequest, in versionInput) (*sdkmcp.CallToolResult, versionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	v, err := t.ctrl().Publish(ctx, sess, in.VersionID, in.Notes)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	return nil, versionOutput{LayoutID: sess.LayoutID, Version: toVersionView(v)}, nil
}

func (t *toolset) revertVersion(ctx context.Context, _ *sdkmcp.CallToolRequest, in versionInput) (*sdkmcp.CallToolResult, versionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	v, err := t.ctrl().Revert(ctx, sess, in.VersionID)
	if err != nil {
		return nil, versionOutput{}, toolError(err)
	}
	return nil, versionOutput{LayoutID: sess.LayoutID, Version: toVersionView(v)}, nil
}

type listVersionsOutput struct {
	LayoutID string        `json:"layout_id"`
	Versions []versionView `json:"versions"`
}

func (t *toolset) listVersions(ctx context.Context, _ *sdkmcp.CallToolRequest, in layoutInput) (*sdkmcp.CallToolResult, listVersionsOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, listVersionsOutput{}, toolError(err)
	}
	summaries, err := t.ctrl().ListVersions(ctx, sess)
	if err != nil {
		return nil, listVersionsOutput{}, toolError(err)
	}
	out := listVersionsOutput{LayoutID: sess.LayoutID, Versions: make([]versionView, 0, len(summaries))}
	for _, s := range summaries {
		out.Versions = append(out.Versions, toSummaryView(s))
	}
	return nil, out, nil
}

// Access

type targetInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	TargetID string `json:"target_id,omitempty" jsonschema:"region id; omit for the layout itself"`
}

type permissionOutput struct {
	TargetID string `json:"target_id"`
	Read     bool   `json:"read"`
	Edit     bool   `json:"edit"`
	Share    bool   `json:"share"`
}

func (t *toolset) checkPermission(ctx context.Context, _ *sdkmcp.CallToolRequest, in targetInput) (*sdkmcp.CallToolResult, permissionOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, permissionOutput{}, toolError(err)
	}
	set, err := t.ctrl().Permissions(ctx, sess, in.TargetID)
	if err != nil {
		return nil, permissionOutput{}, toolError(err)
	}
	target := in.TargetID
	if target == "" {
		target = sess.LayoutID
	}
	return nil, permissionOutput{TargetID: target, Read: set.Read, Edit: set.Edit, Share: set.Share}, nil
}

type listACLOutput struct {
	Entries []aclView `json:"entries"`
}

func (t *toolset) listACL(ctx context.Context, _ *sdkmcp.CallToolRequest, in targetInput) (*sdkmcp.CallToolResult, listACLOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, listACLOutput{}, toolError(err)
	}
	entries, err := t.ctrl().ACL(ctx, sess, in.TargetID)
	if err != nil {
		return nil, listACLOutput{}, toolError(err)
	}
	out := listACLOutput{Entries: make([]aclView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toACLView(e))
	}
	return nil, out, nil
}

type setACLInput struct {
	LayoutID      string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	TargetID      string `json:"target_id,omitempty" jsonschema:"region id; omit to grant on the whole layout"`
	PrincipalType string `json:"principal_type" jsonschema:"user, role or team"`
	PrincipalID   string `json:"principal_id" jsonschema:"user id, role name or team name"`
	Read          bool   `json:"read,omitempty"`
	Edit          bool   `json:"edit,omitempty"`
	Share         bool   `json:"share,omitempty"`
}

func (t *toolset) setACL(ctx context.Context, _ *sdkmcp.CallToolRequest, in setACLInput) (*sdkmcp.CallToolResult, aclView, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, aclView{}, toolError(err)
	}
	entry, err := t.ctrl().SetACL(ctx, sess, permission.Entry{
		RegionID:      in.TargetID,
		PrincipalType: permission.PrincipalType(in.PrincipalType),
		PrincipalID:   in.PrincipalID,
		Permissions:   permission.Set{Read: in.Read, Edit: in.Edit, Share: in.Share},
	})
	if err != nil {
		return nil, aclView{}, toolError(err)
	}
	return nil, toACLView(*entry), nil
}

type removeACLInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	TargetID string `json:"target_id,omitempty" jsonschema:"region id; omit for the layout itself"`
	EntryID  string `json:"entry_id" jsonschema:"grant id from list_acl"`
}

type removeACLOutput struct {
	EntryID string `json:"entry_id"`
	Removed bool   `json:"removed"`
}

func (t *toolset) removeACL(ctx context.Context, _ *sdkmcp.CallToolRequest, in removeACLInput) (*sdkmcp.CallToolResult, removeACLOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, removeACLOutput{}, toolError(err)
	}
	if err := t.ctrl().RemoveACL(ctx, sess, in.TargetID, in.EntryID); err != nil {
		return nil, removeACLOutput{}, toolError(err)
	}
	return nil, removeACLOutput{EntryID: in.EntryID, Removed: true}, nil
}

// Collaboration

type resolveInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID string `json:"region_id" jsonschema:"region with the open conflict"`
	Choice   string `json:"choice" jsonschema:"keep_mine, take_theirs or merge"`
}

type resolveOutput struct {
	LayoutID string      `json:"layout_id"`
	RegionID string      `json:"region_id"`
	Region   *regionView `json:"region,omitempty" jsonschema:"resulting region; absent when the result is a delete"`
}

func (t *toolset) resolveConflict(ctx context.Context, _ *sdkmcp.CallToolRequest, in resolveInput) (*sdkmcp.CallToolResult, resolveOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, resolveOutput{}, toolError(err)
	}
	r, err := t.ctrl().ResolveConflict(ctx, sess, in.RegionID, collab.Choice(in.Choice))
	if err != nil {
		return nil, resolveOutput{}, toolError(err)
	}
	out := resolveOutput{LayoutID: sess.LayoutID, RegionID: in.RegionID}
	if r != nil {
		v := toRegionView(*r)
		out.Region = &v
	}
	return nil, out, nil
}

type activityInput struct {
	LayoutID string `json:"layout_id,omitempty" jsonschema:"layout id; omit for your default layout"`
	RegionID string `json:"region_id,omitempty" jsonschema:"only activity on this region"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum entries, default 50"`
}

type activityOutput struct {
	LayoutID string         `json:"layout_id"`
	Entries  []activityView `json:"entries"`
}

func (t *toolset) recentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in activityInput) (*sdkmcp.CallToolResult, activityOutput, error) {
	sess, err := t.session(ctx, in.LayoutID)
	if err != nil {
		return nil, activityOutput{}, toolError(err)
	}
	if t.activity == nil {
		return nil, activityOutput{LayoutID: sess.LayoutID, Entries: []activityView{}}, nil
	}
	opts := activity.ListActivityOptions{LayoutID: sess.LayoutID, Limit: in.Limit}
	if in.RegionID != "" {
		opts.RegionID = &in.RegionID
	}
	entries, err := t.activity.GetRecentActivity(ctx, sess.TenantID, opts)
	if err != nil {
		return nil, activityOutput{}, toolError(err)
	}
	out := activityOutput{LayoutID: sess.LayoutID, Entries: make([]activityView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toActivityView(e))
	}
	return nil, out, nil
}
