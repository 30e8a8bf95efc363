package editor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

// AddRequest describes a new region. A nil Row or Col asks for automatic
// placement; zero spans and sizes take the type's defaults.
type AddRequest struct {
	ID               string          `json:"id,omitempty"`
	Type             region.Type     `json:"region_type"`
	Row              *int            `json:"grid_row,omitempty"`
	Col              *int            `json:"grid_col,omitempty"`
	RowSpan          int             `json:"row_span,omitempty"`
	ColSpan          int             `json:"col_span,omitempty"`
	MinWidth         int             `json:"min_width,omitempty"`
	MinHeight        int             `json:"min_height,omitempty"`
	IsCollapsed      bool            `json:"is_collapsed,omitempty"`
	IsHiddenOnMobile bool            `json:"is_hidden_on_mobile,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
	WidgetConfig     json.RawMessage `json:"widget_config,omitempty"`
}

// AddRegion places a new region on the grid.
func (c *Controller) AddRegion(ctx context.Context, sess *Session, req AddRequest) (region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := c.requireLayout(ctx, sess, permission.KindEdit); err != nil {
		return region.Region{}, err
	}
	t, err := region.ParseType(string(req.Type))
	if err != nil {
		return region.Region{}, err
	}

	size := region.DefaultSize(t)
	r := region.Region{
		ID:               req.ID,
		TenantID:         sess.TenantID,
		UserID:           sess.Principal.UserID,
		Type:             t,
		RowSpan:          orDefault(req.RowSpan, size.RowSpan),
		ColSpan:          orDefault(req.ColSpan, size.ColSpan),
		MinWidth:         orDefault(req.MinWidth, region.MinPixels),
		MinHeight:        orDefault(req.MinHeight, region.MinPixels),
		IsCollapsed:      req.IsCollapsed,
		IsHiddenOnMobile: req.IsHiddenOnMobile,
		Config:           req.Config,
		WidgetConfig:     req.WidgetConfig,
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var added region.Region
	err = c.commit(ctx, sess, []string{r.ID}, func() ([]collab.Change, error) {
		if req.Row != nil && req.Col != nil {
			r.GridRow, r.GridCol = *req.Row, *req.Col
		} else {
			row, col, err := region.FindFreeSlot(sess.store.All(), r.RowSpan, r.ColSpan)
			if err != nil {
				return nil, err
			}
			r.GridRow, r.GridCol = row, col
		}
		r.DisplayOrder = sess.store.NextDisplayOrder()

		var err error
		added, err = sess.store.Add(r)
		if err != nil {
			return nil, err
		}
		return []collab.Change{{After: &added}}, nil
	})
	if err != nil {
		return region.Region{}, err
	}

	c.logActivity(ctx, sess, activity.TypeRegionAdded, &added.ID,
		fmt.Sprintf("added %s at (%d,%d)", added.Type, added.GridRow, added.GridCol))
	return added, nil
}

// MoveRegion places an existing region at a new top-left cell.
func (c *Controller) MoveRegion(ctx context.Context, sess *Session, id string, row, col int) (region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	current, err := c.editable(ctx, sess, id)
	if err != nil {
		return region.Region{}, err
	}
	if current.IsLocked {
		return region.Region{}, region.ErrLocked
	}

	moved, err := c.update(ctx, sess, current, region.Patch{GridRow: &row, GridCol: &col})
	if err != nil {
		return region.Region{}, err
	}
	c.logActivity(ctx, sess, activity.TypeRegionMoved, &moved.ID,
		fmt.Sprintf("moved %s to (%d,%d)", moved.Type, moved.GridRow, moved.GridCol))
	return moved, nil
}

// ResizeRegion grows or shrinks a region by whole grid cells. The result
// must still cover the region's pixel minimums.
func (c *Controller) ResizeRegion(ctx context.Context, sess *Session, id string, deltaCols, deltaRows int) (region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	current, err := c.editable(ctx, sess, id)
	if err != nil {
		return region.Region{}, err
	}
	if current.IsLocked {
		return region.Region{}, region.ErrLocked
	}

	colSpan := current.ColSpan + deltaCols
	rowSpan := current.RowSpan + deltaRows
	if colSpan >= 1 && colSpan*c.opts.CellWidth < current.MinWidth {
		return region.Region{}, &region.SizeError{
			Width:  colSpan * c.opts.CellWidth,
			Height: rowSpan * c.opts.CellHeight,
			Reason: fmt.Sprintf("width %dpx below minimum %dpx", colSpan*c.opts.CellWidth, current.MinWidth),
		}
	}
	if rowSpan >= 1 && rowSpan*c.opts.CellHeight < current.MinHeight {
		return region.Region{}, &region.SizeError{
			Width:  colSpan * c.opts.CellWidth,
			Height: rowSpan * c.opts.CellHeight,
			Reason: fmt.Sprintf("height %dpx below minimum %dpx", rowSpan*c.opts.CellHeight, current.MinHeight),
		}
	}

	resized, err := c.update(ctx, sess, current, region.Patch{RowSpan: &rowSpan, ColSpan: &colSpan})
	if err != nil {
		return region.Region{}, err
	}
	c.logActivity(ctx, sess, activity.TypeRegionResized, &resized.ID,
		fmt.Sprintf("resized %s to %dx%d", resized.Type, resized.ColSpan, resized.RowSpan))
	return resized, nil
}

// UpdateRegion applies a partial change. A locked region refuses geometry
// changes unless the same patch unlocks it.
func (c *Controller) UpdateRegion(ctx context.Context, sess *Session, id string, p region.Patch) (region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	current, err := c.editable(ctx, sess, id)
	if err != nil {
		return region.Region{}, err
	}
	if p.Geometry() && current.IsLocked && p.Apply(current).IsLocked {
		return region.Region{}, region.ErrLocked
	}

	updated, err := c.update(ctx, sess, current, p)
	if err != nil {
		return region.Region{}, err
	}
	summary := "updated " + string(updated.Type)
	if p.OnlyLockToggle() {
		if updated.IsLocked {
			summary = "locked " + string(updated.Type)
		} else {
			summary = "unlocked " + string(updated.Type)
		}
	}
	c.logActivity(ctx, sess, activity.TypeRegionUpdated, &updated.ID, summary)
	return updated, nil
}

// DeleteRegion soft-deletes a region.
func (c *Controller) DeleteRegion(ctx context.Context, sess *Session, id string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	current, err := c.editable(ctx, sess, id)
	if err != nil {
		return err
	}

	err = c.commit(ctx, sess, []string{id}, func() ([]collab.Change, error) {
		if _, err := sess.store.Remove(id); err != nil {
			return nil, err
		}
		return []collab.Change{{Before: &current}}, nil
	})
	if err != nil {
		return err
	}
	c.logActivity(ctx, sess, activity.TypeRegionDeleted, &current.ID, "deleted "+string(current.Type))
	return nil
}

// Undo restores the previous history state. It is refused while any
// collaboration conflict is open.
func (c *Controller) Undo(ctx context.Context, sess *Session) ([]region.Region, error) {
	return c.travel(ctx, sess, sess.history.Undo, sess.history.Redo, ErrNothingToUndo)
}

// Redo re-applies the state undone last.
func (c *Controller) Redo(ctx context.Context, sess *Session) ([]region.Region, error) {
	return c.travel(ctx, sess, sess.history.Redo, sess.history.Undo, ErrNothingToRedo)
}

func (c *Controller) travel(
	ctx context.Context,
	sess *Session,
	step, rollback func() ([]region.Region, bool),
	empty error,
) ([]region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, ErrSessionClosed
	}
	if sess.sync != nil {
		if open := sess.sync.Conflicts(); len(open) > 0 {
			return nil, &collab.ConflictError{Conflict: open[0]}
		}
	}

	before := sess.store.All()
	target, ok := step()
	if !ok {
		return nil, empty
	}

	var ids []string
	for _, ch := range diff(before, target) {
		ids = append(ids, ch.RegionID())
	}

	err := c.apply(ctx, sess, ids, func() ([]collab.Change, error) {
		prev := sess.store.All()
		if err := sess.store.Restore(target); err != nil {
			return nil, err
		}
		return diff(prev, sess.store.All()), nil
	})
	if err != nil {
		rollback()
		return nil, err
	}

	c.scheduleSave(sess)
	return sess.store.All(), nil
}

// ResolveConflict settles an open conflict with the given choice.
func (c *Controller) ResolveConflict(ctx context.Context, sess *Session, regionID string, choice collab.Choice) (*region.Region, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, ErrSessionClosed
	}
	if sess.sync == nil {
		return nil, ErrNotCollaborative
	}

	result, err := sess.sync.Resolve(ctx, regionID, choice)
	if err != nil {
		return nil, err
	}
	sess.history.SaveState(sess.store.All())
	c.scheduleSave(sess)
	c.logActivity(ctx, sess, activity.TypeConflictResolved, &regionID, "resolved with "+string(choice))
	return result, nil
}

// editable returns a live region after checking the edit right on it.
func (c *Controller) editable(ctx context.Context, sess *Session, id string) (region.Region, error) {
	if sess.closed {
		return region.Region{}, ErrSessionClosed
	}
	current, err := sess.store.Get(id)
	if err != nil {
		return region.Region{}, err
	}
	if err := c.requireRegion(ctx, sess, current, permission.KindEdit); err != nil {
		return region.Region{}, err
	}
	return current, nil
}

func (c *Controller) update(ctx context.Context, sess *Session, current region.Region, p region.Patch) (region.Region, error) {
	var updated region.Region
	err := c.commit(ctx, sess, []string{current.ID}, func() ([]collab.Change, error) {
		var err error
		updated, err = sess.store.Update(current.ID, p)
		if err != nil {
			return nil, err
		}
		return []collab.Change{{Before: &current, After: &updated}}, nil
	})
	return updated, err
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
