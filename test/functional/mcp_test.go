package functional_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/testserver"
)

type region struct {
	ID      string `json:"id"`
	Type    string `json:"region_type"`
	GridRow int    `json:"grid_row"`
	GridCol int    `json:"grid_col"`
	RowSpan int    `json:"row_span"`
	ColSpan int    `json:"col_span"`
}

type regions struct {
	LayoutID string   `json:"layout_id"`
	Regions  []region `json:"regions"`
}

// callTool calls a tool and returns its structured output.
func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) json.RawMessage {
	t.Helper()
	result := call(t, session, name, args)
	require.False(t, result.IsError, "tool %s error: %s", name, text(result))

	data, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	return data
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	return result
}

func text(result *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func listRegions(t *testing.T, session *sdkmcp.ClientSession, layoutID string) regions {
	t.Helper()
	var out regions
	require.NoError(t, json.Unmarshal(callTool(t, session, "list_regions", map[string]any{"layout_id": layoutID}), &out))
	return out
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")

	// The MCP handshake is open; tool calls need a valid key.
	session := ts.Connect(t, "wrong")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "list_layouts"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")

	resp, err := http.Get(ts.Server.URL + "/layouts/any/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFunctional_DefaultLayoutWorkflow(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	session := ts.Connect(t, ts.Token)

	var opened struct {
		LayoutID string   `json:"layout_id"`
		Regions  []region `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, session, "open_layout", map[string]any{}), &opened))
	require.NotEmpty(t, opened.LayoutID)
	require.NotEmpty(t, opened.Regions)

	var added struct {
		Region region `json:"region"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, session, "add_region", map[string]any{
		"layout_id":   opened.LayoutID,
		"id":          "notes",
		"region_type": "custom",
	}), &added))
	require.Equal(t, "notes", added.Region.ID)

	after := listRegions(t, session, opened.LayoutID)
	require.Len(t, after.Regions, len(opened.Regions)+1)

	// The HTTP export sees the autosaved session.
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/layouts/"+opened.LayoutID+"/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		LayoutID string   `json:"layoutId"`
		Regions  []region `json:"regions"`
		Metadata struct {
			RegionCount int `json:"regionCount"`
		} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Equal(t, opened.LayoutID, doc.LayoutID)
	require.Equal(t, len(after.Regions), doc.Metadata.RegionCount)

	undone := callTool(t, session, "undo", map[string]any{"layout_id": opened.LayoutID})
	var undoneRegions regions
	require.NoError(t, json.Unmarshal(undone, &undoneRegions))
	require.Len(t, undoneRegions.Regions, len(opened.Regions))
}

func TestFunctional_CollaboratorsSeeEachOther(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	require.NoError(t, ts.AddAPIKey("editor-token", permission.Principal{TenantID: "tenant1", UserID: "editor", Teams: []string{"ops"}}))

	owner := ts.Connect(t, ts.Token)
	editor := ts.Connect(t, "editor-token")

	_ = callTool(t, owner, "create_layout", map[string]any{"id": "shared", "name": "Shared"})
	_ = callTool(t, owner, "add_region", map[string]any{
		"layout_id": "shared", "id": "a", "region_type": "analytics", "grid_row": 0, "grid_col": 0,
	})

	require.Len(t, listRegions(t, editor, "shared").Regions, 1)

	_ = callTool(t, owner, "add_region", map[string]any{
		"layout_id": "shared", "id": "b", "region_type": "settings", "grid_row": 0, "grid_col": 6,
	})
	require.Eventually(t, func() bool {
		return len(listRegions(t, editor, "shared").Regions) == 2
	}, 5*time.Second, 20*time.Millisecond)

	result := call(t, editor, "move_region", map[string]any{"layout_id": "shared", "region_id": "b", "grid_row": 3, "grid_col": 6})
	require.True(t, result.IsError)
	require.Contains(t, text(result), "PERMISSION_DENIED")

	_ = callTool(t, owner, "set_acl", map[string]any{
		"layout_id": "shared", "target_id": "b", "principal_type": "team", "principal_id": "ops", "read": true, "edit": true,
	})

	_ = callTool(t, editor, "move_region", map[string]any{"layout_id": "shared", "region_id": "b", "grid_row": 3, "grid_col": 6})
	require.Eventually(t, func() bool {
		for _, r := range listRegions(t, owner, "shared").Regions {
			if r.ID == "b" {
				return r.GridRow == 3
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	var status struct {
		Status struct {
			Connection string `json:"connection"`
			Conflicts  int    `json:"conflicts"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, owner, "layout_status", map[string]any{"layout_id": "shared"}), &status))
	require.Equal(t, "connected", status.Status.Connection)
	require.Zero(t, status.Status.Conflicts)
	require.Equal(t, 2, ts.Hub.Members("shared"))
}

func TestFunctional_ErrorCodes(t *testing.T) {
	ts := testserver.New(t, "token", "tenant1")
	session := ts.Connect(t, ts.Token)

	_ = callTool(t, session, "create_layout", map[string]any{"id": "board", "name": "Board"})
	_ = callTool(t, session, "add_region", map[string]any{
		"layout_id": "board", "id": "a", "region_type": "analytics", "grid_row": 0, "grid_col": 0,
	})
	_ = callTool(t, session, "update_region", map[string]any{"layout_id": "board", "region_id": "a", "is_locked": true})

	cases := []struct {
		tool string
		args map[string]any
		code string
	}{
		{"move_region", map[string]any{"layout_id": "board", "region_id": "a", "grid_row": 1, "grid_col": 0}, "REGION_LOCKED"},
		{"add_region", map[string]any{"layout_id": "board", "region_type": "settings", "grid_row": 0, "grid_col": 10}, "BOUNDS_VIOLATION"},
		{"add_region", map[string]any{"layout_id": "board", "region_type": "settings", "grid_row": 1, "grid_col": 2}, "OVERLAP"},
		{"publish_version", map[string]any{"layout_id": "board", "version_id": "nope"}, "VERSION_NOT_FOUND"},
		{"open_layout", map[string]any{"layout_id": "nope"}, "LAYOUT_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			result := call(t, session, tc.tool, tc.args)
			require.True(t, result.IsError)
			require.Contains(t, text(result), tc.code)
		})
	}
}
