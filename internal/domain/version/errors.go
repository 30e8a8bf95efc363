package version

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionNotFound indicates the version doesn't exist.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNoCurrentVersion indicates the layout has never been published.
	ErrNoCurrentVersion = errors.New("layout has no current version")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("invalid version transition")
	// ErrInvalidInput indicates invalid version input.
	ErrInvalidInput = errors.New("invalid version input")
)

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid version transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
