package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `gridlayout edits dashboard layouts: regions placed on a 12-column grid.

Core concepts:
- Layout: one user's dashboard. Every user has a default layout seeded from their role.
- Region: a rectangle on the grid (grid_row, grid_col, row_span, col_span) with a type and config.
- Session: your open copy of a layout. Edits apply immediately, are autosaved, and can be undone.
- Version: an immutable snapshot. Drafts can be previewed and published; publishing sets the current version.

Workflow:
1) open_layout (omit layout_id for your default layout). Note the region ids it returns.
2) Edit with add_region / move_region / resize_region / update_region / delete_region.
   - Bounds: columns 0..11, col + col_span <= 12, row_span <= 20. Regions never overlap.
   - Locked regions reject geometry changes until unlocked with update_region(is_locked=false).
3) undo / redo walk the edit history.
4) save_draft, then preview_version / publish_version. revert_version restores an older snapshot as a new draft.
5) layout_status shows save state, collaboration state and open conflicts.
   When a collaborator changed the same region, resolve_conflict with keep_mine, take_theirs or merge.

Docs:
- gridlayout://docs/grid (placement rules and errors)
- gridlayout://docs/versions (draft, preview, publish, revert)
- gridlayout://docs/collaboration (conflicts and permissions)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "gridlayout://docs/grid",
		Name:        "docs_grid",
		Title:       "Grid placement rules",
		Description: "How regions are placed, sized and validated.",
		Content: `# Grid placement

The grid has 12 columns and unbounded rows. A region occupies
rows [grid_row, grid_row + row_span) and columns [grid_col, grid_col + col_span).

## Rules

- grid_col >= 0 and grid_col + col_span <= 12
- grid_row >= 0
- 1 <= row_span <= 20, 1 <= col_span <= 12
- min_width and min_height are pixels between 100 and 2000
- two live regions never share a cell

## Errors

- BOUNDS_VIOLATION: a rule above failed; the message names it.
- OVERLAP: the change would cover another region; the message names it.
- SIZE_VIOLATION: a resize went below the minimum pixel size.
- REGION_LOCKED: unlock the region first.

## Adding

add_region without grid_row/grid_col places the region in the first free
slot scanning rows top to bottom. Default sizes depend on the region type.
`,
	},
	{
		URI:         "gridlayout://docs/versions",
		Name:        "docs_versions",
		Title:       "Versions",
		Description: "Draft, preview, publish and revert.",
		Content: `# Versions

- save_draft snapshots the live regions as a DRAFT.
- preview_version moves a DRAFT to PREVIEW.
- publish_version publishes a DRAFT or PREVIEW. The previously published
  version becomes ARCHIVED and the layout's current version moves.
- revert_version copies an older version into a new DRAFT and restores its
  regions into your session. Nothing is deleted.

Publishing needs the share right on the layout. Drafts and reverts need edit.
`,
	},
	{
		URI:         "gridlayout://docs/collaboration",
		Name:        "docs_collaboration",
		Title:       "Collaboration and permissions",
		Description: "Conflicts, presence and access control.",
		Content: `# Collaboration

Several people can edit one layout at once. Your edits apply locally first.
If someone else changed the same region before your change reached the hub,
the region gets a conflict. While any conflict is open, undo and redo are
refused and the conflicting region cannot be edited.

resolve_conflict choices:
- keep_mine: re-send your version.
- take_theirs: accept theirs.
- merge: take the fields each side changed; fails when both sides deleted or
  one side deleted the region.

# Permissions

Rights are read, edit and share. Layout owners hold all of them. Others get
read by default and whatever ACL entries grant them by user, role or team.
An ACL entry on the layout id applies to the whole layout.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
