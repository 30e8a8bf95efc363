package editor

import "time"

// SyncStatus drives the save indicator.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusPending SyncStatus = "pending"
	StatusSaving  SyncStatus = "saving"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// StatusInfo is a point-in-time view of a session's persistence and
// collaboration state.
type StatusInfo struct {
	Save        SyncStatus `json:"save"`
	LastError   string     `json:"last_error,omitempty"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	Connection  string     `json:"connection,omitempty"`
	Conflicts   int        `json:"conflicts"`
	Queued      int        `json:"queued"`
	CanUndo     bool       `json:"can_undo"`
	CanRedo     bool       `json:"can_redo"`
}
