package collab

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict indicates a concurrent edit that needs user resolution.
	ErrConflict = errors.New("concurrent edit conflict")
	// ErrNoConflict indicates there is nothing to resolve for the region.
	ErrNoConflict = errors.New("no conflict for region")
	// ErrCannotMerge indicates the two sides cannot be merged field by field.
	ErrCannotMerge = errors.New("conflicting changes cannot be merged")
	// ErrInvalidChoice indicates an unknown resolution choice.
	ErrInvalidChoice = errors.New("invalid resolution choice")
	// ErrInvalidState indicates a disallowed connection state change.
	ErrInvalidState = errors.New("invalid connection state transition")
	// ErrClosed indicates the sync has been shut down.
	ErrClosed = errors.New("collaboration sync closed")
)

// ConflictError carries the conflict the user has to resolve.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on region %s with client %s", e.Conflict.RegionID, e.Conflict.TheirClientID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
