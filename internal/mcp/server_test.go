package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/sqlite"
)

var testPrincipal = permission.Principal{TenantID: "tenant-1", UserID: "alice", Roles: []string{"admin"}}

func newTestClient(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	layoutSvc := layout.NewService(sqlite.NewLayoutRepository(db), sqlite.NewRegionRepository(db), activitySvc, layout.DefaultCatalog(), nil)
	versionSvc := version.NewService(sqlite.NewVersionRepository(db), activitySvc, nil)
	resolver := permission.NewResolver(sqlite.NewACLRepository(db), nil, true)

	ctrl := editor.NewController(layoutSvc, versionSvc, resolver, activitySvc, nil, nil, editor.Options{
		UndoDebounce: -1,
		SaveDebounce: -1,
	})
	manager := editor.NewManager(ctrl)

	server := NewServer(Config{
		Services:         Services{Editor: manager, Layouts: layoutSvc, Activity: activitySvc},
		TransportMode:    "stdio",
		DefaultPrincipal: testPrincipal,
	})

	ctx := context.Background()
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
		_ = manager.CloseAll(context.Background())
	})
	return session
}

func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "call %s", name)
	return result
}

func decodeStructured[T any](t *testing.T, result *sdkmcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, "tool error: %s", resultText(result))

	var out T
	data, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func resultText(result *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if text, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func requireToolError(t *testing.T, result *sdkmcp.CallToolResult, code string) {
	t.Helper()
	require.True(t, result.IsError, "expected %s", code)
	require.Contains(t, resultText(result), code)
}

func TestServer_ListsToolsAndDocs(t *testing.T) {
	session := newTestClient(t)
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
		require.NotEmpty(t, tool.Description, tool.Name)
	}
	for _, name := range []string{"open_layout", "add_region", "move_region", "undo", "export_layout", "import_layout", "publish_version", "set_acl", "resolve_conflict"} {
		require.True(t, names[name], "missing tool %s", name)
	}

	read, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "gridlayout://docs/grid"})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	require.Contains(t, read.Contents[0].Text, "BOUNDS_VIOLATION")
}

func TestServer_EditUndoExportImport(t *testing.T) {
	session := newTestClient(t)

	created := decodeStructured[createLayoutOutput](t, callTool(t, session, "create_layout", map[string]any{
		"id":   "board",
		"name": "Board",
	}))
	require.Equal(t, "board", created.ID)

	added := decodeStructured[regionOutput](t, callTool(t, session, "add_region", map[string]any{
		"layout_id":   "board",
		"id":          "a",
		"region_type": "analytics",
		"grid_row":    0,
		"grid_col":    0,
		"config":      map[string]any{"title": "Traffic"},
	}))
	require.Equal(t, 6, added.Region.ColSpan)
	require.Equal(t, map[string]any{"title": "Traffic"}, added.Region.Config)

	_ = decodeStructured[regionOutput](t, callTool(t, session, "add_region", map[string]any{
		"layout_id":   "board",
		"id":          "b",
		"region_type": "reports",
		"grid_row":    0,
		"grid_col":    6,
	}))

	requireToolError(t, callTool(t, session, "move_region", map[string]any{
		"layout_id": "board",
		"region_id": "b",
		"grid_row":  0,
		"grid_col":  3,
	}), "OVERLAP")

	requireToolError(t, callTool(t, session, "resize_region", map[string]any{
		"layout_id":  "board",
		"region_id":  "a",
		"delta_cols": 7,
	}), "BOUNDS_VIOLATION")

	undone := decodeStructured[regionsOutput](t, callTool(t, session, "undo", map[string]any{"layout_id": "board"}))
	require.Len(t, undone.Regions, 1)
	require.Equal(t, "a", undone.Regions[0].ID)

	exported := decodeStructured[exportOutput](t, callTool(t, session, "export_layout", map[string]any{"layout_id": "board"}))
	require.Equal(t, 1, exported.RegionCount)

	var doc editor.Document
	require.NoError(t, json.Unmarshal([]byte(exported.Document), &doc))
	require.Equal(t, "board", doc.LayoutID)
	require.Equal(t, editor.ExportFormatVersion, doc.Version)

	imported := decodeStructured[importOutput](t, callTool(t, session, "import_layout", map[string]any{
		"layout_id": "board",
		"document": `{"regions":[
			{"id":"x","region_type":"settings","grid_row":0,"grid_col":0,"row_span":2,"col_span":4},
			{"id":"y","region_type":"settings","grid_row":0,"grid_col":10,"row_span":1,"col_span":4}
		]}`,
	}))
	require.Len(t, imported.Accepted, 1)
	require.Equal(t, "x", imported.Accepted[0].ID)
	require.Len(t, imported.Dropped, 1)
	require.Equal(t, "y", imported.Dropped[0].ID)

	listed := decodeStructured[regionsOutput](t, callTool(t, session, "list_regions", map[string]any{"layout_id": "board"}))
	require.Len(t, listed.Regions, 1)
	require.Equal(t, "x", listed.Regions[0].ID)

	requireToolError(t, callTool(t, session, "import_layout", map[string]any{
		"layout_id": "board",
		"document":  "not json",
	}), "IMPORT_FAILED")
}

func TestServer_DefaultLayoutIsSeededFromRole(t *testing.T) {
	session := newTestClient(t)

	opened := decodeStructured[openLayoutOutput](t, callTool(t, session, "open_layout", map[string]any{}))
	require.NotEmpty(t, opened.LayoutID)
	require.NotEmpty(t, opened.Regions)
	require.Equal(t, "idle", opened.Status.Save)

	layouts := decodeStructured[listLayoutsOutput](t, callTool(t, session, "list_layouts", map[string]any{}))
	require.Len(t, layouts.Layouts, 1)
	require.True(t, layouts.Layouts[0].IsDefault)
	require.Equal(t, opened.LayoutID, layouts.Layouts[0].ID)
}

func TestServer_VersionLifecycle(t *testing.T) {
	session := newTestClient(t)

	_ = decodeStructured[createLayoutOutput](t, callTool(t, session, "create_layout", map[string]any{"id": "board", "name": "Board"}))
	_ = decodeStructured[regionOutput](t, callTool(t, session, "add_region", map[string]any{
		"layout_id": "board", "id": "a", "region_type": "settings",
	}))

	draft := decodeStructured[versionOutput](t, callTool(t, session, "save_draft", map[string]any{"layout_id": "board", "notes": "first"}))
	require.Equal(t, "DRAFT", draft.Version.Status)
	require.Equal(t, 1, draft.Version.RegionCount)

	published := decodeStructured[versionOutput](t, callTool(t, session, "publish_version", map[string]any{
		"layout_id":  "board",
		"version_id": draft.Version.ID,
	}))
	require.Equal(t, "PUBLISHED", published.Version.Status)

	requireToolError(t, callTool(t, session, "preview_version", map[string]any{
		"layout_id":  "board",
		"version_id": draft.Version.ID,
	}), "INVALID_TRANSITION")

	versions := decodeStructured[listVersionsOutput](t, callTool(t, session, "list_versions", map[string]any{"layout_id": "board"}))
	require.Len(t, versions.Versions, 1)
	require.True(t, versions.Versions[0].IsCurrent)

	requireToolError(t, callTool(t, session, "revert_version", map[string]any{
		"layout_id":  "board",
		"version_id": "missing",
	}), "VERSION_NOT_FOUND")
}

func TestServer_PermissionsAndErrors(t *testing.T) {
	session := newTestClient(t)

	_ = decodeStructured[createLayoutOutput](t, callTool(t, session, "create_layout", map[string]any{"id": "board", "name": "Board"}))

	perms := decodeStructured[permissionOutput](t, callTool(t, session, "check_permission", map[string]any{"layout_id": "board"}))
	require.Equal(t, "board", perms.TargetID)
	require.True(t, perms.Share)

	granted := decodeStructured[aclView](t, callTool(t, session, "set_acl", map[string]any{
		"layout_id":      "board",
		"principal_type": "team",
		"principal_id":   "ops",
		"read":           true,
		"edit":           true,
	}))
	require.Equal(t, "board", granted.TargetID)
	require.NotEmpty(t, granted.ID)

	acl := decodeStructured[listACLOutput](t, callTool(t, session, "list_acl", map[string]any{"layout_id": "board"}))
	require.Len(t, acl.Entries, 1)

	_ = decodeStructured[removeACLOutput](t, callTool(t, session, "remove_acl", map[string]any{
		"layout_id": "board",
		"entry_id":  granted.ID,
	}))

	requireToolError(t, callTool(t, session, "open_layout", map[string]any{"layout_id": "nope"}), "LAYOUT_NOT_FOUND")
	requireToolError(t, callTool(t, session, "add_region", map[string]any{
		"layout_id": "board", "region_type": "weather",
	}), "INVALID_REGION_TYPE")
	requireToolError(t, callTool(t, session, "delete_region", map[string]any{
		"layout_id": "board", "region_id": "ghost",
	}), "REGION_NOT_FOUND")
	requireToolError(t, callTool(t, session, "resolve_conflict", map[string]any{
		"layout_id": "board", "region_id": "ghost", "choice": "merge",
	}), "NOT_COLLABORATIVE")

	activity := decodeStructured[activityOutput](t, callTool(t, session, "recent_activity", map[string]any{"layout_id": "board"}))
	require.NotEmpty(t, activity.Entries)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(context.Canceled))

	apiErr := MapError(layout.ErrLayoutNotFound)
	require.Equal(t, "LAYOUT_NOT_FOUND", apiErr.Code)
	require.ErrorIs(t, apiErr, layout.ErrLayoutNotFound)

	apiErr = MapError(&permission.PermissionError{Kind: permission.KindEdit, RegionID: "a", PrincipalID: "bob"})
	require.Equal(t, "PERMISSION_DENIED", apiErr.Code)
	require.ErrorIs(t, apiErr, permission.ErrPermissionDenied)
}
