package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/transport"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecoveryHint != "" {
		msg += " (" + e.RecoveryHint + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	apiErr := mapError(err)
	if apiErr != nil {
		apiErr.cause = err
	}
	return apiErr
}

func mapError(err error) *APIError {
	var (
		boundsErr     *region.BoundsError
		overlapErr    *region.OverlapError
		conflictErr   *collab.ConflictError
		permErr       *permission.PermissionError
		transitionErr *version.TransitionError
		importErr     *editor.ImportError
	)
	switch {
	case errors.Is(err, transport.ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: "missing or invalid credentials"}
	case errors.As(err, &boundsErr):
		return &APIError{Code: "BOUNDS_VIOLATION", Message: boundsErr.Reason, Details: map[string]any{"rule": boundsErr.Rule}, RecoveryHint: "Keep grid_col + col_span within 12 columns"}
	case errors.As(err, &overlapErr):
		return &APIError{Code: "OVERLAP", Message: err.Error(), Details: map[string]any{"region_id": overlapErr.RegionID, "other_id": overlapErr.OtherID}, RecoveryHint: "Move to a free cell or move the other region first"}
	case errors.Is(err, region.ErrInvalidSize):
		return &APIError{Code: "SIZE_VIOLATION", Message: err.Error(), RecoveryHint: "Minimum size is 100 pixels per side"}
	case errors.Is(err, region.ErrLocked):
		return &APIError{Code: "REGION_LOCKED", Message: "region is locked", RecoveryHint: "Unlock with update_region(is_locked=false)"}
	case errors.Is(err, region.ErrRegionNotFound):
		return &APIError{Code: "REGION_NOT_FOUND", Message: "region not found", RecoveryHint: "Call list_regions for current ids"}
	case errors.Is(err, region.ErrDuplicateRegion):
		return &APIError{Code: "DUPLICATE_REGION", Message: "region id already in use"}
	case errors.Is(err, region.ErrInvalidType):
		return &APIError{Code: "INVALID_REGION_TYPE", Message: "unknown region type", Details: region.Types}
	case errors.As(err, &permErr):
		return &APIError{Code: "PERMISSION_DENIED", Message: err.Error(), Details: map[string]any{"kind": permErr.Kind, "target_id": permErr.RegionID}, RecoveryHint: "Ask an owner for access"}
	case errors.Is(err, permission.ErrPermissionDenied):
		return &APIError{Code: "PERMISSION_DENIED", Message: err.Error()}
	case errors.Is(err, permission.ErrEntryNotFound):
		return &APIError{Code: "ACL_ENTRY_NOT_FOUND", Message: "acl entry not found", RecoveryHint: "Call list_acl for current ids"}
	case errors.Is(err, permission.ErrInvalidEntry):
		return &APIError{Code: "INVALID_ACL_ENTRY", Message: err.Error()}
	case errors.Is(err, layout.ErrLayoutNotFound):
		return &APIError{Code: "LAYOUT_NOT_FOUND", Message: "layout not found", RecoveryHint: "Call list_layouts or omit layout_id"}
	case errors.Is(err, layout.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, version.ErrVersionNotFound):
		return &APIError{Code: "VERSION_NOT_FOUND", Message: "version not found", RecoveryHint: "Call list_versions"}
	case errors.Is(err, version.ErrNoCurrentVersion):
		return &APIError{Code: "NO_CURRENT_VERSION", Message: "layout has never been published"}
	case errors.As(err, &transitionErr):
		return &APIError{Code: "INVALID_TRANSITION", Message: err.Error(), Details: map[string]any{"from": transitionErr.From, "to": transitionErr.To}}
	case errors.As(err, &conflictErr):
		return &APIError{Code: "CONFLICT", Message: err.Error(), Details: toConflictView(conflictErr.Conflict), RecoveryHint: "Call resolve_conflict"}
	case errors.Is(err, collab.ErrNoConflict):
		return &APIError{Code: "NO_CONFLICT", Message: "no open conflict for region"}
	case errors.Is(err, collab.ErrCannotMerge):
		return &APIError{Code: "CANNOT_MERGE", Message: err.Error(), RecoveryHint: "Choose keep_mine or take_theirs"}
	case errors.Is(err, collab.ErrInvalidChoice):
		return &APIError{Code: "INVALID_CHOICE", Message: "choice must be keep_mine, take_theirs or merge"}
	case errors.As(err, &importErr):
		return &APIError{Code: "IMPORT_FAILED", Message: importErr.Reason}
	case errors.Is(err, editor.ErrNothingToUndo):
		return &APIError{Code: "NOTHING_TO_UNDO", Message: "nothing to undo"}
	case errors.Is(err, editor.ErrNothingToRedo):
		return &APIError{Code: "NOTHING_TO_REDO", Message: "nothing to redo"}
	case errors.Is(err, editor.ErrSessionClosed):
		return &APIError{Code: "SESSION_CLOSED", Message: "session closed", RecoveryHint: "Call open_layout"}
	case errors.Is(err, editor.ErrNotCollaborative):
		return &APIError{Code: "NOT_COLLABORATIVE", Message: "collaboration is disabled"}
	case errors.Is(err, editor.ErrNoVersioning):
		return &APIError{Code: "VERSIONING_DISABLED", Message: "versioning is not configured"}
	case errors.Is(err, editor.ErrNoAccessControl):
		return &APIError{Code: "ACCESS_CONTROL_DISABLED", Message: "access control is not configured"}
	case errors.Is(err, editor.ErrInvalidInput), errors.Is(err, region.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

// toolError converts a domain error into the error a tool handler returns.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
