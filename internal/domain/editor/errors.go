package editor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrImport indicates an import payload that could not be used at all.
	ErrImport = errors.New("import failed")
	// ErrSyncTimeout indicates a save round trip exceeded its deadline.
	ErrSyncTimeout = errors.New("save timed out")
	// ErrNothingToUndo indicates the history cursor is at the start.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo indicates the history cursor is at the end.
	ErrNothingToRedo = errors.New("nothing to redo")
	// ErrInvalidInput indicates a malformed gesture request.
	ErrInvalidInput = errors.New("invalid editor input")
	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotCollaborative indicates the session has no collaboration channel.
	ErrNotCollaborative = errors.New("session is not collaborative")
	// ErrNoVersioning indicates the controller was built without versioning.
	ErrNoVersioning = errors.New("versioning not configured")
	// ErrNoAccessControl indicates the controller was built without ACLs.
	ErrNoAccessControl = errors.New("access control not configured")
)

// ImportError explains why a whole import was refused.
type ImportError struct {
	Reason string
	Cause  error
}

func (e *ImportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Cause)
	}
	return "import failed: " + e.Reason
}

func (e *ImportError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrImport, e.Cause}
	}
	return []error{ErrImport}
}

// SyncTimeoutError reports a save that ran out of time on every attempt.
type SyncTimeoutError struct {
	Attempts int
	Timeout  time.Duration
}

func (e *SyncTimeoutError) Error() string {
	return fmt.Sprintf("save timed out after %d attempt(s) of %s", e.Attempts, e.Timeout)
}

func (e *SyncTimeoutError) Unwrap() error { return ErrSyncTimeout }
