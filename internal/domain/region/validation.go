package region

import (
	"fmt"
	"strings"
)

// Grid geometry limits.
const (
	GridColumns = 12
	MaxRowSpan  = 20
	MinPixels   = 100
	MaxPixels   = 2000
)

// ValidateBounds checks the grid invariants and returns the first one r
// violates as a *BoundsError.
func ValidateBounds(r Region) error {
	if r.GridCol < 0 || r.GridCol > GridColumns-1 {
		return &BoundsError{
			Rule:   RuleColumnRange,
			Reason: fmt.Sprintf("column %d outside 0..%d", r.GridCol, GridColumns-1),
		}
	}
	if r.ColSpan < 1 || r.ColSpan > GridColumns {
		return &BoundsError{
			Rule:   RuleColSpanRange,
			Reason: fmt.Sprintf("column span %d outside 1..%d", r.ColSpan, GridColumns),
		}
	}
	if r.GridCol+r.ColSpan > GridColumns {
		return &BoundsError{
			Rule:   RuleGridWidth,
			Reason: fmt.Sprintf("column %d + span %d exceeds grid width %d", r.GridCol, r.ColSpan, GridColumns),
		}
	}
	if r.GridRow < 0 {
		return &BoundsError{
			Rule:   RuleRowNegative,
			Reason: fmt.Sprintf("row %d is negative", r.GridRow),
		}
	}
	if r.RowSpan < 1 || r.RowSpan > MaxRowSpan {
		return &BoundsError{
			Rule:   RuleRowSpanRange,
			Reason: fmt.Sprintf("row span %d outside 1..%d", r.RowSpan, MaxRowSpan),
		}
	}
	return nil
}

// ValidateSize checks min width and height against the allowed pixel range.
func ValidateSize(minWidth, minHeight int) error {
	if minWidth < MinPixels || minWidth > MaxPixels {
		return &SizeError{
			Width:  minWidth,
			Height: minHeight,
			Reason: fmt.Sprintf("min width %d outside %d..%d", minWidth, MinPixels, MaxPixels),
		}
	}
	if minHeight < MinPixels || minHeight > MaxPixels {
		return &SizeError{
			Width:  minWidth,
			Height: minHeight,
			Reason: fmt.Sprintf("min height %d outside %d..%d", minHeight, MinPixels, MaxPixels),
		}
	}
	return nil
}

// Validate runs every per-region check: identity, type, bounds and size.
func Validate(r Region) error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrInvalidInput
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateBounds(r); err != nil {
		return err
	}
	return ValidateSize(r.MinWidth, r.MinHeight)
}

// Overlaps reports whether the grid rectangles of a and b intersect.
// Regions sharing only an edge do not overlap.
func Overlaps(a, b Region) bool {
	return a.GridCol < b.GridCol+b.ColSpan &&
		a.GridCol+a.ColSpan > b.GridCol &&
		a.GridRow < b.GridRow+b.RowSpan &&
		a.GridRow+a.RowSpan > b.GridRow
}

// FindOverlap returns the first live region in all that collides with
// candidate, skipping candidate's own prior state and soft-deleted regions.
func FindOverlap(candidate Region, all []Region) *Region {
	for i := range all {
		other := all[i]
		if other.ID == candidate.ID || other.Deleted() {
			continue
		}
		if Overlaps(candidate, other) {
			return &other
		}
	}
	return nil
}

// FindFreeSlot scans row-major for the first in-bounds position where a
// rowSpan x colSpan rectangle fits without overlapping any live region.
func FindFreeSlot(all []Region, rowSpan, colSpan int) (row, col int, err error) {
	probe := Region{RowSpan: rowSpan, ColSpan: colSpan}
	if err := ValidateBounds(probe); err != nil {
		return 0, 0, err
	}

	maxRow := 0
	for _, r := range all {
		if r.Deleted() {
			continue
		}
		if end := r.GridRow + r.RowSpan; end > maxRow {
			maxRow = end
		}
	}

	// Row maxRow is always free, so the scan terminates there at the latest.
	for row = 0; row <= maxRow; row++ {
		for col = 0; col+colSpan <= GridColumns; col++ {
			probe.GridRow = row
			probe.GridCol = col
			if !collides(probe, all) {
				return row, col, nil
			}
		}
	}
	return maxRow, 0, nil
}

func collides(probe Region, all []Region) bool {
	for _, r := range all {
		if !r.Deleted() && Overlaps(probe, r) {
			return true
		}
	}
	return false
}
