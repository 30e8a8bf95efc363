// Package history keeps a bounded undo/redo stack of full region snapshots.
package history

import (
	"sync"
	"time"

	"github.com/rpggio/gridlayout/internal/debounce"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

const (
	DefaultMaxSize  = 50
	DefaultDebounce = 300 * time.Millisecond
)

// State is one snapshot in the history.
type State struct {
	Regions   []region.Region
	Timestamp time.Time
}

// Options configures a Manager.
type Options struct {
	MaxSize  int
	Debounce time.Duration
}

// Manager is a cursor over committed snapshots. SaveState is debounced;
// Push commits immediately.
type Manager struct {
	mu      sync.Mutex
	entries []State
	index   int
	maxSize int
	pending *State
	deb     *debounce.Debouncer
	now     func() time.Time
}

// NewManager creates an empty history. Zero options fall back to defaults;
// a negative Debounce disables debouncing.
func NewManager(opts Options) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Manager{
		index:   -1,
		maxSize: opts.MaxSize,
		deb:     debounce.New(opts.Debounce),
		now:     time.Now,
	}
}

// SaveState records regions after the debounce window. Calls inside the
// window replace the pending snapshot.
func (m *Manager) SaveState(regions []region.Region) {
	state := State{Regions: region.CloneAll(regions), Timestamp: m.now()}

	m.mu.Lock()
	m.pending = &state
	m.mu.Unlock()

	m.deb.Trigger(m.commitPending)
}

// Push records regions immediately, discarding any pending snapshot.
func (m *Manager) Push(regions []region.Region) {
	m.deb.Cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.commit(State{Regions: region.CloneAll(regions), Timestamp: m.now()})
}

// Flush commits the pending snapshot, if any.
func (m *Manager) Flush() {
	m.deb.Flush()
}

// Undo steps the cursor back and returns that snapshot.
func (m *Manager) Undo() ([]region.Region, bool) {
	m.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index <= 0 {
		return nil, false
	}
	m.index--
	return region.CloneAll(m.entries[m.index].Regions), true
}

// Redo steps the cursor forward and returns that snapshot.
func (m *Manager) Redo() ([]region.Region, bool) {
	m.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index >= len(m.entries)-1 {
		return nil, false
	}
	m.index++
	return region.CloneAll(m.entries[m.index].Regions), true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index >= 0 && m.index < len(m.entries)-1
}

// Size returns the number of committed snapshots.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the cursor position, -1 when empty.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Current returns the snapshot under the cursor.
func (m *Manager) Current() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 {
		return State{}, false
	}
	s := m.entries[m.index]
	return State{Regions: region.CloneAll(s.Regions), Timestamp: s.Timestamp}, true
}

// Clear empties the history and drops any pending snapshot.
func (m *Manager) Clear() {
	m.deb.Cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.index = -1
	m.pending = nil
}

func (m *Manager) commitPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return
	}
	state := *m.pending
	m.pending = nil
	m.commit(state)
}

// commit must be called with mu held.
func (m *Manager) commit(state State) {
	m.entries = append(m.entries[:m.index+1], state)
	if over := len(m.entries) - m.maxSize; over > 0 {
		m.entries = append([]State(nil), m.entries[over:]...)
	}
	m.index = len(m.entries) - 1
}
