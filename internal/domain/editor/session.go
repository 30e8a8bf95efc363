package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rpggio/gridlayout/internal/debounce"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/history"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

// Session is one principal's open copy of a layout: the region store, its
// undo history, the collaboration channel and the pending save.
type Session struct {
	TenantID  string
	LayoutID  string
	OwnerID   string
	Principal permission.Principal
	OpenedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	store   *region.Store
	history *history.Manager
	sync    *collab.Sync
	saver   *debounce.Debouncer

	// mu serializes gestures; saveMu serializes writes to storage.
	mu     sync.Mutex
	saveMu sync.Mutex
	closed bool

	statusMu  sync.Mutex
	status    SyncStatus
	lastErr   error
	savedAt   *time.Time
	versionID string
}

// Regions returns the live regions in display order.
func (s *Session) Regions() []region.Region {
	return s.store.All()
}

// Region returns a live region.
func (s *Session) Region(id string) (region.Region, error) {
	return s.store.Get(id)
}

// Sync returns the collaboration channel, or nil for a solo session.
func (s *Session) Sync() *collab.Sync {
	return s.sync
}

// WorkingVersionID returns the version last drafted or reverted to in this
// session.
func (s *Session) WorkingVersionID() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.versionID
}

// Status reports save and collaboration state.
func (s *Session) Status() StatusInfo {
	s.statusMu.Lock()
	info := StatusInfo{Save: s.status, LastSavedAt: s.savedAt}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	s.statusMu.Unlock()

	info.CanUndo = s.history.CanUndo()
	info.CanRedo = s.history.CanRedo()
	if s.sync != nil {
		info.Connection = s.sync.State().String()
		info.Conflicts = len(s.sync.Conflicts())
		info.Queued = s.sync.OutboxLen()
	}
	return info
}

// ApplyRemote commits a collaborator's version of a region.
func (s *Session) ApplyRemote(r region.Region) error {
	_, err := s.store.Put(r)
	return err
}

// LocalRegion returns the live region for the collaboration layer.
func (s *Session) LocalRegion(id string) (region.Region, bool) {
	r, err := s.store.Get(id)
	return r, err == nil
}

// RemoveRemote applies a collaborator's delete.
func (s *Session) RemoveRemote(id string) error {
	_, err := s.store.Remove(id)
	if errors.Is(err, region.ErrRegionNotFound) {
		return nil
	}
	return err
}

func (s *Session) setStatus(status SyncStatus, err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status
	s.lastErr = err
	if status == StatusSynced {
		now := time.Now()
		s.savedAt = &now
	}
}

func (s *Session) setVersion(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.versionID = id
}

func (s *Session) lastSaveErr() error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if s.status == StatusFailed {
		return s.lastErr
	}
	return nil
}
