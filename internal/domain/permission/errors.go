package permission

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied indicates the principal lacks the requested right.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidEntry indicates a malformed ACL entry.
	ErrInvalidEntry = errors.New("invalid acl entry")
	// ErrEntryNotFound indicates the ACL entry doesn't exist.
	ErrEntryNotFound = errors.New("acl entry not found")
)

// PermissionError reports which right was missing on which region.
type PermissionError struct {
	Kind        Kind
	RegionID    string
	PrincipalID string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s lacks %s on region %s", e.PrincipalID, e.Kind, e.RegionID)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }
