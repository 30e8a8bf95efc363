package collab

import (
	"bytes"
	"encoding/json"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

// MergeRegions combines concurrent edits field group by field group. A group
// takes the local value when the local side changed it relative to base and
// the remote value otherwise. The result is not validated.
func MergeRegions(base, mine, theirs *region.Region) (region.Region, error) {
	if base == nil || mine == nil || theirs == nil {
		return region.Region{}, ErrCannotMerge
	}

	out := theirs.Clone()

	type geometry struct{ row, col, rowSpan, colSpan int }
	geo := pick(
		geometry{base.GridRow, base.GridCol, base.RowSpan, base.ColSpan},
		geometry{mine.GridRow, mine.GridCol, mine.RowSpan, mine.ColSpan},
		geometry{theirs.GridRow, theirs.GridCol, theirs.RowSpan, theirs.ColSpan},
	)
	out.GridRow, out.GridCol, out.RowSpan, out.ColSpan = geo.row, geo.col, geo.rowSpan, geo.colSpan

	type size struct{ w, h int }
	sz := pick(size{base.MinWidth, base.MinHeight}, size{mine.MinWidth, mine.MinHeight}, size{theirs.MinWidth, theirs.MinHeight})
	out.MinWidth, out.MinHeight = sz.w, sz.h

	out.Type = pick(base.Type, mine.Type, theirs.Type)
	out.IsCollapsed = pick(base.IsCollapsed, mine.IsCollapsed, theirs.IsCollapsed)
	out.IsLocked = pick(base.IsLocked, mine.IsLocked, theirs.IsLocked)
	out.IsHiddenOnMobile = pick(base.IsHiddenOnMobile, mine.IsHiddenOnMobile, theirs.IsHiddenOnMobile)
	out.DisplayOrder = pick(base.DisplayOrder, mine.DisplayOrder, theirs.DisplayOrder)
	out.Config = pickRaw(base.Config, mine.Config, theirs.Config)
	out.WidgetConfig = pickRaw(base.WidgetConfig, mine.WidgetConfig, theirs.WidgetConfig)

	if mine.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = mine.UpdatedAt
	}
	return out, nil
}

func pick[T comparable](base, mine, theirs T) T {
	if mine != base {
		return mine
	}
	return theirs
}

func pickRaw(base, mine, theirs json.RawMessage) json.RawMessage {
	if !bytes.Equal(mine, base) {
		return append(json.RawMessage(nil), mine...)
	}
	return append(json.RawMessage(nil), theirs...)
}
