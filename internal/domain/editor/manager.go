package editor

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rpggio/gridlayout/internal/domain/permission"
)

// Manager keeps one open session per tenant, layout and user.
type Manager struct {
	ctrl *Controller

	mu       sync.Mutex
	sessions map[string]*Session
	opening  singleflight.Group
}

// NewManager creates a session manager over ctrl.
func NewManager(ctrl *Controller) *Manager {
	return &Manager{ctrl: ctrl, sessions: make(map[string]*Session)}
}

// Controller returns the controller sessions are driven through.
func (m *Manager) Controller() *Controller {
	return m.ctrl
}

// Open returns the principal's open session for the layout, opening one if
// needed. Concurrent opens of the same key share one load.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	key := sessionKey(req.TenantID, req.LayoutID, req.Principal.UserID)
	if sess, ok := m.Get(req.TenantID, req.LayoutID, req.Principal.UserID); ok {
		return sess, nil
	}

	v, err, _ := m.opening.Do(key, func() (any, error) {
		if sess, ok := m.Get(req.TenantID, req.LayoutID, req.Principal.UserID); ok {
			return sess, nil
		}
		sess, err := m.ctrl.Open(ctx, req)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[key] = sess
		m.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// OpenDefault opens the principal's default layout, creating and seeding it
// from the role catalog on first use.
func (m *Manager) OpenDefault(ctx context.Context, tenantID string, p permission.Principal, role string) (*Session, error) {
	l, err := m.ctrl.storage.GetOrCreateDefault(ctx, tenantID, p.UserID, role)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, OpenRequest{TenantID: tenantID, LayoutID: l.ID, Principal: p})
}

// Export opens (or reuses) the principal's session and exports it.
func (m *Manager) Export(ctx context.Context, req OpenRequest) (Document, error) {
	sess, err := m.Open(ctx, req)
	if err != nil {
		return Document{}, err
	}
	return m.ctrl.Export(ctx, sess)
}

// Get returns an open session.
func (m *Manager) Get(tenantID, layoutID, userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey(tenantID, layoutID, userID)]
	return sess, ok
}

// Close flushes and closes one session.
func (m *Manager) Close(ctx context.Context, tenantID, layoutID, userID string) error {
	key := sessionKey(tenantID, layoutID, userID)
	m.mu.Lock()
	sess, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.ctrl.Close(ctx, sess)
}

// CloseAll flushes and closes every session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	open := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, sess := range open {
		if err := m.ctrl.Close(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sessionKey(tenantID, layoutID, userID string) string {
	return tenantID + "|" + layoutID + "|" + userID
}
