package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rpggio/gridlayout/internal/debounce"
	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/history"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
)

// Storage is the persistence collaborator for layouts and region sets.
type Storage interface {
	Get(ctx context.Context, tenantID, id string) (*layout.Layout, error)
	GetOrCreateDefault(ctx context.Context, tenantID, userID, role string) (*layout.Layout, error)
	LoadRegions(ctx context.Context, tenantID, layoutID string) ([]region.Region, error)
	SaveRegions(ctx context.Context, tenantID, layoutID string, regions []region.Region) error
}

// ActivityRepository records gesture events.
type ActivityRepository interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}

// Options tunes the controller. Zero fields use defaults; a negative
// debounce runs that step inline.
type Options struct {
	HistorySize  int
	UndoDebounce time.Duration
	SaveDebounce time.Duration
	SaveTimeout  time.Duration
	SaveRetries  int
	// CellWidth and CellHeight convert grid spans to pixels for the
	// min-size check on resize.
	CellWidth  int
	CellHeight int

	HeartbeatInterval time.Duration
	Reconnect         bool
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		HistorySize:  history.DefaultMaxSize,
		UndoDebounce: history.DefaultDebounce,
		SaveDebounce: 300 * time.Millisecond,
		SaveTimeout:  5 * time.Second,
		SaveRetries:  3,
		CellWidth:    100,
		CellHeight:   100,
		Reconnect:    true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistorySize <= 0 {
		o.HistorySize = d.HistorySize
	}
	if o.UndoDebounce == 0 {
		o.UndoDebounce = d.UndoDebounce
	}
	if o.SaveDebounce == 0 {
		o.SaveDebounce = d.SaveDebounce
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = d.SaveTimeout
	}
	if o.SaveRetries <= 0 {
		o.SaveRetries = d.SaveRetries
	}
	if o.CellWidth <= 0 {
		o.CellWidth = d.CellWidth
	}
	if o.CellHeight <= 0 {
		o.CellHeight = d.CellHeight
	}
	return o
}

// Controller turns gestures into validated, recorded, broadcast and saved
// changes. It holds no per-layout state; everything lives in the Session.
type Controller struct {
	storage    Storage
	versions   *version.Service
	perms      *permission.Resolver
	activities ActivityRepository
	dialer     collab.Dialer
	logger     *slog.Logger
	opts       Options
}

// NewController creates a controller. perms, activities and dialer may be
// nil; a nil dialer opens solo sessions.
func NewController(
	storage Storage,
	versions *version.Service,
	perms *permission.Resolver,
	activities ActivityRepository,
	dialer collab.Dialer,
	logger *slog.Logger,
	opts Options,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		storage:    storage,
		versions:   versions,
		perms:      perms,
		activities: activities,
		dialer:     dialer,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

// OpenRequest identifies the layout and the acting principal.
type OpenRequest struct {
	TenantID  string
	LayoutID  string
	Principal permission.Principal
	User      collab.User
}

// Open loads a layout into a new session. Stored regions that no longer
// validate are dropped with a warning rather than failing the open.
func (c *Controller) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	l, err := c.storage.Get(ctx, req.TenantID, req.LayoutID)
	if err != nil {
		return nil, err
	}
	regions, err := c.storage.LoadRegions(ctx, req.TenantID, req.LayoutID)
	if err != nil {
		return nil, err
	}

	store := region.NewStore(l.ID)
	accepted, dropped := sanitize(regions)
	for _, d := range dropped {
		c.logger.Warn("stored region dropped on open", "layout_id", l.ID, "region_id", d.ID, "reason", d.Reason)
	}
	if err := store.ReplaceAll(accepted); err != nil {
		return nil, fmt.Errorf("loading regions: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		TenantID:  req.TenantID,
		LayoutID:  l.ID,
		OwnerID:   l.UserID,
		Principal: req.Principal,
		OpenedAt:  time.Now(),
		ctx:       sessCtx,
		cancel:    cancel,
		store:     store,
		history:   history.NewManager(history.Options{MaxSize: c.opts.HistorySize, Debounce: c.opts.UndoDebounce}),
		saver:     debounce.New(c.opts.SaveDebounce),
		status:    StatusIdle,
	}
	if l.CurrentVersionID != nil {
		sess.versionID = *l.CurrentVersionID
	}
	sess.history.Push(store.All())

	if c.dialer != nil {
		user := req.User
		if user.ID == "" {
			user.ID = req.Principal.UserID
		}
		s, err := collab.NewSync(collab.Options{
			LayoutID:          l.ID,
			User:              user,
			Dialer:            c.dialer,
			Applier:           sess,
			Logger:            c.logger,
			HeartbeatInterval: c.opts.HeartbeatInterval,
			Reconnect:         c.opts.Reconnect,
			OnConflict:        func(cf collab.Conflict) { c.onConflict(sess, cf) },
		})
		if err != nil {
			cancel()
			return nil, err
		}
		sess.sync = s
		if err := s.Connect(ctx); err != nil {
			c.logger.Warn("collaboration unavailable, editing offline", "layout_id", l.ID, "error", err)
		}
	}

	c.logger.Info("session opened", "layout_id", l.ID, "user_id", req.Principal.UserID, "regions", len(accepted))
	return sess, nil
}

// Close flushes pending history and saves and shuts the session down.
func (c *Controller) Close(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil
	}
	sess.closed = true
	sess.mu.Unlock()

	sess.history.Flush()
	err := c.flushSave(sess)
	if sess.sync != nil {
		_ = sess.sync.Close()
	}
	sess.history.Clear()
	sess.cancel()

	c.logger.Info("session closed", "layout_id", sess.LayoutID, "user_id", sess.Principal.UserID)
	return err
}

// Flush commits any debounced history entry and runs the pending save now.
func (c *Controller) Flush(ctx context.Context, sess *Session) error {
	sess.history.Flush()
	return c.flushSave(sess)
}

func (c *Controller) flushSave(sess *Session) error {
	sess.saver.Flush()
	// wait out a save the timer already started
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()
	return sess.lastSaveErr()
}

// commit runs the shared gesture pipeline: apply the mutation, snapshot
// history and schedule a save. Callers hold sess.mu.
func (c *Controller) commit(ctx context.Context, sess *Session, regionIDs []string, mutate func() ([]collab.Change, error)) error {
	if err := c.apply(ctx, sess, regionIDs, mutate); err != nil {
		return err
	}
	sess.history.SaveState(sess.store.All())
	c.scheduleSave(sess)
	return nil
}

// apply runs mutate, through the collaboration channel when there is one so
// the changes are broadcast.
func (c *Controller) apply(ctx context.Context, sess *Session, regionIDs []string, mutate func() ([]collab.Change, error)) error {
	if sess.closed {
		return ErrSessionClosed
	}
	if sess.sync == nil {
		_, err := mutate()
		return err
	}
	return sess.sync.Commit(ctx, regionIDs, mutate)
}

func (c *Controller) scheduleSave(sess *Session) {
	sess.setStatus(StatusPending, nil)
	sess.saver.Trigger(func() { c.persist(sess) })
}

// persist writes the full region set, retrying with backoff. Each attempt
// has its own deadline; running out of attempts on deadlines surfaces as a
// *SyncTimeoutError but never blocks editing.
func (c *Controller) persist(sess *Session) {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	sess.setStatus(StatusSaving, nil)
	regions := sess.store.AllWithDeleted()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	attempts := 0
	_, err := backoff.Retry(sess.ctx, func() (struct{}, error) {
		attempts++
		ctx, cancel := context.WithTimeout(sess.ctx, c.opts.SaveTimeout)
		defer cancel()

		err := c.storage.SaveRegions(ctx, sess.TenantID, sess.LayoutID, regions)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, layout.ErrLayoutNotFound), errors.Is(err, layout.ErrInvalidInput):
			return struct{}{}, backoff.Permanent(err)
		case errors.Is(err, context.DeadlineExceeded):
			return struct{}{}, &SyncTimeoutError{Attempts: attempts, Timeout: c.opts.SaveTimeout}
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.SaveRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("save failed, retrying", "layout_id", sess.LayoutID, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		sess.setStatus(StatusFailed, err)
		c.logger.Error("save failed", "layout_id", sess.LayoutID, "attempts", attempts, "error", err)
		return
	}
	sess.setStatus(StatusSynced, nil)
}

func (c *Controller) requireRegion(ctx context.Context, sess *Session, r region.Region, kind permission.Kind) error {
	if c.perms == nil {
		return nil
	}
	owner := r.UserID
	if owner == "" {
		owner = sess.OwnerID
	}
	return c.perms.Require(ctx, permission.Resource{ID: r.ID, TenantID: sess.TenantID, OwnerID: owner}, sess.Principal, kind)
}

// requireLayout checks a layout-wide right. Layout-level grants are ACL
// entries keyed by the layout ID.
func (c *Controller) requireLayout(ctx context.Context, sess *Session, kind permission.Kind) error {
	if c.perms == nil {
		return nil
	}
	return c.perms.Require(ctx, permission.Resource{ID: sess.LayoutID, TenantID: sess.TenantID, OwnerID: sess.OwnerID}, sess.Principal, kind)
}

func (c *Controller) onConflict(sess *Session, cf collab.Conflict) {
	c.logActivity(sess.ctx, sess, activity.TypeConflictDetected, &cf.RegionID,
		fmt.Sprintf("conflict on region %s with %s", cf.RegionID, cf.TheirClientID))
}

func (c *Controller) logActivity(ctx context.Context, sess *Session, kind activity.ActivityType, regionID *string, summary string) {
	if c.activities == nil {
		return
	}
	_ = c.activities.Log(ctx, sess.TenantID, &activity.ActivityEntry{
		LayoutID:     sess.LayoutID,
		UserID:       sess.Principal.UserID,
		RegionID:     regionID,
		ActivityType: kind,
		Summary:      summary,
	})
}

// diff lists the per-region changes between two live sets.
func diff(before, after []region.Region) []collab.Change {
	prev := make(map[string]region.Region, len(before))
	for _, r := range before {
		prev[r.ID] = r
	}

	var changes []collab.Change
	for _, r := range after {
		old, ok := prev[r.ID]
		delete(prev, r.ID)
		if ok && old.SameContent(r) {
			continue
		}
		next := r
		ch := collab.Change{After: &next}
		if ok {
			ch.Before = &old
		}
		changes = append(changes, ch)
	}
	for _, r := range before {
		if old, ok := prev[r.ID]; ok {
			ch := collab.Change{Before: &old}
			changes = append(changes, ch)
		}
	}
	return changes
}
