package region

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionNotFound indicates the region doesn't exist or was deleted.
	ErrRegionNotFound = errors.New("region not found")
	// ErrDuplicateRegion indicates a region with the same ID already exists.
	ErrDuplicateRegion = errors.New("region already exists")
	// ErrInvalidType indicates an unknown region type.
	ErrInvalidType = errors.New("invalid region type")
	// ErrInvalidInput indicates a region is missing required fields.
	ErrInvalidInput = errors.New("invalid region input")
	// ErrOutOfBounds indicates the region violates grid geometry.
	ErrOutOfBounds = errors.New("region out of grid bounds")
	// ErrOverlap indicates the region collides with another region.
	ErrOverlap = errors.New("region overlaps another region")
	// ErrInvalidSize indicates min width/height outside the allowed pixel range.
	ErrInvalidSize = errors.New("region size out of range")
	// ErrLocked indicates a locked region cannot be moved or resized.
	ErrLocked = errors.New("region is locked")
)

// BoundsRule names the grid invariant a region broke.
type BoundsRule string

const (
	RuleColumnRange  BoundsRule = "column_out_of_range"
	RuleColSpanRange BoundsRule = "span_out_of_range"
	RuleGridWidth    BoundsRule = "exceeds_grid_width"
	RuleRowNegative  BoundsRule = "row_negative"
	RuleRowSpanRange BoundsRule = "row_span_out_of_range"
)

// BoundsError reports the first grid rule a region violates.
type BoundsError struct {
	Rule   BoundsRule
	Reason string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOutOfBounds, e.Reason)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

// OverlapError reports the region a candidate collides with.
type OverlapError struct {
	RegionID string
	OtherID  string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: %s overlaps %s", ErrOverlap, e.RegionID, e.OtherID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// SizeError reports min dimensions outside the allowed range.
type SizeError struct {
	Width  int
	Height int
	Reason string
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidSize, e.Reason)
}

func (e *SizeError) Unwrap() error { return ErrInvalidSize }
