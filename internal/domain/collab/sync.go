package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

const (
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultReconnectInitial    = 500 * time.Millisecond
	DefaultReconnectMaxElapsed = 5 * time.Minute
)

// Options configures a Sync.
type Options struct {
	LayoutID string
	ClientID string
	User     User
	Dialer   Dialer
	Applier  Applier
	Logger   *slog.Logger

	// HeartbeatInterval of zero uses the default; negative disables pings.
	HeartbeatInterval   time.Duration
	Reconnect           bool
	ReconnectInitial    time.Duration
	ReconnectMaxElapsed time.Duration

	// OnConflict is called without locks held whenever a conflict is
	// detected.
	OnConflict func(Conflict)
}

// Change is one region's local before/after pair. A nil After is a delete
// and a nil Before is a creation.
type Change struct {
	Before *region.Region
	After  *region.Region
}

// RegionID returns the region the change touches.
func (c Change) RegionID() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

type pendingEdit struct {
	revision      int64
	baseServerRev int64
	base          *region.Region
	local         *region.Region
}

type pingPayload struct {
	SentAt int64 `json:"sentAt"`
}

// Sync reconciles local edits with remote ones for one open layout. Local
// edits apply immediately and are queued until the hub acknowledges them;
// a remote edit to a region with an unacknowledged local edit becomes a
// Conflict instead of overwriting.
type Sync struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// sendMu orders outbound messages; it is always taken before mu.
	sendMu sync.Mutex

	mu            sync.Mutex
	state         ConnectionState
	conn          Conn
	gen           uint64
	revision      int64
	serverRevs    map[string]int64
	lastSeen      map[string]int64
	pending       map[string]*pendingEdit
	outbox        []Message
	conflicts     map[string]*Conflict
	roster        map[string]User
	latency       time.Duration
	stopHeartbeat context.CancelFunc
	reconnecting  bool
}

// NewSync creates a disconnected Sync.
func NewSync(opts Options) (*Sync, error) {
	if opts.LayoutID == "" || opts.Applier == nil || opts.Dialer == nil {
		return nil, errors.New("collab: layout id, applier and dialer are required")
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = DefaultReconnectInitial
	}
	if opts.ReconnectMaxElapsed <= 0 {
		opts.ReconnectMaxElapsed = DefaultReconnectMaxElapsed
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Sync{
		opts:       opts,
		logger:     logger.With("layout_id", opts.LayoutID, "client_id", opts.ClientID),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateDisconnected,
		serverRevs: make(map[string]int64),
		lastSeen:   make(map[string]int64),
		pending:    make(map[string]*pendingEdit),
		conflicts:  make(map[string]*Conflict),
		roster:     make(map[string]User),
	}, nil
}

func (s *Sync) ClientID() string { return s.opts.ClientID }
func (s *Sync) LayoutID() string { return s.opts.LayoutID }

// State returns the connection state.
func (s *Sync) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latency returns the last measured ping round trip.
func (s *Sync) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

// Roster returns the active collaborators, excluding this client.
func (s *Sync) Roster() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(s.roster))
	for _, u := range s.roster {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Conflicts returns the unresolved conflicts ordered by region.
func (s *Sync) Conflicts() []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

// Conflict returns the unresolved conflict for a region.
func (s *Sync) Conflict(regionID string) (Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conflicts[regionID]
	if !ok {
		return Conflict{}, false
	}
	return *c, true
}

// Pending reports whether a region has an unacknowledged local edit.
func (s *Sync) Pending(regionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[regionID]
	return ok
}

// OutboxLen returns the number of unacknowledged outbound edits.
func (s *Sync) OutboxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// HeartbeatRunning reports whether the ping loop is active.
func (s *Sync) HeartbeatRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopHeartbeat != nil
}

// Connect dials the hub and sends a join. The state becomes connected once
// the hub's snapshot arrives and queued edits have been replayed.
func (s *Sync) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(StateConnecting)
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	conn, err := s.opts.Dialer.Dial(ctx, s.opts.LayoutID, s.opts.ClientID, connHandler{s: s, gen: gen})
	if err != nil {
		s.mu.Lock()
		if s.gen == gen && s.state == StateConnecting {
			s.transitionLocked(StateDisconnected)
		}
		s.mu.Unlock()
		return fmt.Errorf("dialing collaboration hub: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateConnecting {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	user, _ := json.Marshal(s.opts.User)
	join := Message{Type: TypeJoin, LayoutID: s.opts.LayoutID, ClientID: s.opts.ClientID, Payload: user}

	s.sendMu.Lock()
	err = conn.Send(ctx, join)
	s.sendMu.Unlock()
	if err != nil {
		s.connectionLost(gen, err)
		return fmt.Errorf("joining collaboration hub: %w", err)
	}
	return nil
}

// Disconnect drops the connection without closing the Sync. Queued edits
// are kept for replay.
func (s *Sync) Disconnect() {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.dropConnection(gen, nil, false)
}

// Close shuts the Sync down permanently.
func (s *Sync) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(StateClosed)
	conn := s.conn
	s.conn = nil
	s.stopHeartbeatLocked()
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Commit runs mutate and records the changes it reports as local edits,
// atomically with respect to inbound remote changes. Regions listed in
// regionIDs with an open conflict are refused with a *ConflictError before
// mutate runs.
func (s *Sync) Commit(ctx context.Context, regionIDs []string, mutate func() ([]Change, error)) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	for _, id := range regionIDs {
		if c, ok := s.conflicts[id]; ok {
			s.mu.Unlock()
			return &ConflictError{Conflict: *c}
		}
	}

	changes, err := mutate()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	msgs := make([]Message, 0, len(changes))
	for _, ch := range changes {
		if ch.RegionID() == "" {
			continue
		}
		msgs = append(msgs, s.recordLocalLocked(ch))
	}
	conn, gen := s.liveConnLocked()
	s.mu.Unlock()

	s.sendAll(ctx, conn, gen, msgs)
	return nil
}

// Receive processes an inbound message as if it arrived on the current
// connection. It returns a *ConflictError when the message produced one.
func (s *Sync) Receive(msg Message) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.receive(gen, msg)
}

// Resolve settles a conflict. KeepMine re-sends the local version, TakeTheirs
// applies the remote version, and Merge applies and re-sends the field-wise
// merge. It returns the resulting region, or nil when the result is a
// deletion.
func (s *Sync) Resolve(ctx context.Context, regionID string, choice Choice) (*region.Region, error) {
	if !choice.Valid() {
		return nil, ErrInvalidChoice
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	c, ok := s.conflicts[regionID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoConflict
	}

	var result *region.Region
	switch choice {
	case TakeTheirs:
		if err := s.applyLocked(regionID, c.Theirs); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("taking remote version: %w", err)
		}
		result = c.Theirs
	case KeepMine:
		result = c.Mine
	case Merge:
		merged, err := MergeRegions(c.Base, c.Mine, c.Theirs)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if err := s.opts.Applier.ApplyRemote(merged); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("applying merge: %w", err)
		}
		result = &merged
	}
	delete(s.conflicts, regionID)

	var msgs []Message
	if choice != TakeTheirs {
		msgs = append(msgs, s.recordLocalLocked(Change{Before: c.Theirs, After: result}))
	}
	conn, gen := s.liveConnLocked()
	s.mu.Unlock()

	s.logger.Info("conflict resolved", "region_id", regionID, "choice", choice)
	s.sendAll(ctx, conn, gen, msgs)

	if result == nil {
		return nil, nil
	}
	out := result.Clone()
	return &out, nil
}

type connHandler struct {
	s   *Sync
	gen uint64
}

func (h connHandler) HandleMessage(msg Message) {
	if err := h.s.receive(h.gen, msg); err != nil && !errors.Is(err, ErrConflict) {
		h.s.logger.Warn("collab message dropped", "type", msg.Type, "region_id", msg.RegionID, "error", err)
	}
}

func (h connHandler) HandleDisconnect(err error) {
	h.s.connectionLost(h.gen, err)
}

func (s *Sync) receive(gen uint64, msg Message) error {
	s.mu.Lock()
	stale := gen != s.gen || s.state == StateClosed
	s.mu.Unlock()
	if stale {
		return nil
	}

	switch msg.Type {
	case TypeAck:
		s.handleAck(msg)
	case TypeEdit, TypeDelete:
		return s.handleRemote(msg)
	case TypeReject:
		return s.handleReject(msg)
	case TypeSnapshot:
		return s.handleSnapshot(gen, msg)
	case TypePresence:
		s.handlePresence(msg)
	case TypePong:
		s.handlePong(msg)
	}
	return nil
}

func (s *Sync) handleAck(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := msg.RegionID
	if msg.ServerRevision > s.serverRevs[id] {
		s.serverRevs[id] = msg.ServerRevision
	}
	s.outbox = filterOutbox(s.outbox, func(m Message) bool {
		return m.RegionID == id && m.Revision <= msg.Revision
	})
	if p, ok := s.pending[id]; ok && p.revision <= msg.Revision {
		delete(s.pending, id)
	}
}

func (s *Sync) handleRemote(msg Message) error {
	if msg.ClientID == s.opts.ClientID || msg.RegionID == "" {
		return nil
	}

	var theirs *region.Region
	if msg.Type == TypeEdit {
		r, err := decodeRegion(msg.Payload)
		if err != nil {
			return fmt.Errorf("decoding remote region: %w", err)
		}
		theirs = &r
	}

	s.mu.Lock()
	id := msg.RegionID
	key := msg.ClientID + "|" + id
	if msg.Revision <= s.lastSeen[key] || (msg.ServerRevision > 0 && msg.ServerRevision <= s.serverRevs[id]) {
		s.mu.Unlock()
		s.logger.Debug("stale remote edit ignored", "region_id", id, "from", msg.ClientID, "revision", msg.Revision)
		return nil
	}

	if existing, ok := s.conflicts[id]; ok {
		s.markSeenLocked(key, msg)
		existing.Theirs = theirs
		existing.TheirClientID = msg.ClientID
		existing.ServerRevision = msg.ServerRevision
		c := *existing
		s.mu.Unlock()
		return &ConflictError{Conflict: c}
	}

	if p, ok := s.pending[id]; ok {
		s.markSeenLocked(key, msg)
		c := s.openConflictLocked(id, p, theirs, msg.ClientID, msg.ServerRevision)
		s.mu.Unlock()
		s.notifyConflicts(c)
		return &ConflictError{Conflict: c}
	}

	// The edit is only marked seen once it is applied or held as a conflict,
	// so a failed apply can be redelivered.
	if err := s.applyLocked(id, theirs); err != nil {
		if !errors.Is(err, region.ErrOverlap) {
			s.mu.Unlock()
			return fmt.Errorf("applying remote edit: %w", err)
		}
		s.markSeenLocked(key, msg)
		c := s.placementConflictLocked(id, theirs, msg.ClientID, msg.ServerRevision)
		s.mu.Unlock()
		s.notifyConflicts(c)
		return &ConflictError{Conflict: c}
	}
	s.markSeenLocked(key, msg)
	s.mu.Unlock()
	return nil
}

func (s *Sync) markSeenLocked(key string, msg Message) {
	s.lastSeen[key] = msg.Revision
	if msg.ServerRevision > s.serverRevs[msg.RegionID] {
		s.serverRevs[msg.RegionID] = msg.ServerRevision
	}
}

func (s *Sync) handleReject(msg Message) error {
	var st RegionState
	if err := json.Unmarshal(msg.Payload, &st); err != nil {
		return fmt.Errorf("decoding reject: %w", err)
	}
	theirs, err := stateRegion(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	id := msg.RegionID
	s.outbox = filterOutbox(s.outbox, func(m Message) bool { return m.RegionID == id })
	if st.ServerRevision > s.serverRevs[id] {
		s.serverRevs[id] = st.ServerRevision
	}

	if existing, ok := s.conflicts[id]; ok {
		if st.ServerRevision >= existing.ServerRevision {
			existing.Theirs = theirs
			existing.TheirClientID = st.LastWriter
			existing.ServerRevision = st.ServerRevision
		}
		s.mu.Unlock()
		return nil
	}

	p, ok := s.pending[id]
	if !ok {
		err := s.applyLocked(id, theirs)
		if !errors.Is(err, region.ErrOverlap) {
			s.mu.Unlock()
			return err
		}
		c := s.placementConflictLocked(id, theirs, st.LastWriter, st.ServerRevision)
		s.mu.Unlock()
		s.notifyConflicts(c)
		return &ConflictError{Conflict: c}
	}
	c := s.openConflictLocked(id, p, theirs, st.LastWriter, st.ServerRevision)
	s.mu.Unlock()

	s.notifyConflicts(c)
	return &ConflictError{Conflict: c}
}

// handleSnapshot reconciles the hub's state after a (re)join, then replays
// queued edits in their original order.
func (s *Sync) handleSnapshot(gen uint64, msg Message) error {
	var snap Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		return nil
	}

	var conflicts []Conflict
	for _, st := range snap.Regions {
		id := st.RegionID
		if p, ok := s.pending[id]; ok {
			if st.ServerRevision > p.baseServerRev && st.LastWriter != s.opts.ClientID {
				theirs, err := stateRegion(st)
				if err != nil {
					s.logger.Warn("snapshot region unreadable", "region_id", id, "error", err)
					continue
				}
				conflicts = append(conflicts, s.openConflictLocked(id, p, theirs, st.LastWriter, st.ServerRevision))
			}
			if st.ServerRevision > s.serverRevs[id] {
				s.serverRevs[id] = st.ServerRevision
			}
			continue
		}
		if _, ok := s.conflicts[id]; ok || st.ServerRevision <= s.serverRevs[id] {
			continue
		}
		theirs, err := stateRegion(st)
		if err == nil {
			err = s.applyLocked(id, theirs)
		}
		switch {
		case err == nil:
			s.serverRevs[id] = st.ServerRevision
		case errors.Is(err, region.ErrOverlap):
			conflicts = append(conflicts, s.placementConflictLocked(id, theirs, st.LastWriter, st.ServerRevision))
			s.serverRevs[id] = st.ServerRevision
		default:
			s.logger.Warn("snapshot region not applied", "region_id", id, "error", err)
		}
	}

	s.roster = make(map[string]User, len(snap.Users))
	for _, u := range snap.Users {
		if u.ClientID != s.opts.ClientID {
			s.roster[u.ClientID] = u
		}
	}

	s.transitionLocked(StateConnected)
	s.startHeartbeatLocked(gen)
	replay := append([]Message(nil), s.outbox...)
	conn := s.conn
	s.mu.Unlock()

	if len(replay) > 0 {
		s.logger.Info("replaying queued edits", "count", len(replay))
	}
	s.sendAll(s.ctx, conn, gen, replay)
	s.notifyConflicts(conflicts...)
	if len(conflicts) > 0 {
		return &ConflictError{Conflict: conflicts[0]}
	}
	return nil
}

func (s *Sync) handlePresence(msg Message) {
	if msg.ClientID == s.opts.ClientID {
		return
	}
	var u User
	if err := json.Unmarshal(msg.Payload, &u); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u.IsActive {
		s.roster[msg.ClientID] = u
	} else {
		delete(s.roster, msg.ClientID)
	}
}

func (s *Sync) handlePong(msg Message) {
	var p pingPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.SentAt == 0 {
		return
	}
	s.mu.Lock()
	s.latency = time.Since(time.Unix(0, p.SentAt))
	s.mu.Unlock()
}

func (s *Sync) recordLocalLocked(ch Change) Message {
	id := ch.RegionID()
	s.revision++

	msg := Message{
		Type:         TypeEdit,
		LayoutID:     s.opts.LayoutID,
		RegionID:     id,
		ClientID:     s.opts.ClientID,
		Revision:     s.revision,
		BaseRevision: s.serverRevs[id],
	}
	if ch.After == nil {
		msg.Type = TypeDelete
	} else {
		msg.Payload = encodeRegion(*ch.After)
	}

	if p, ok := s.pending[id]; ok {
		p.revision = s.revision
		p.local = clonePtr(ch.After)
	} else {
		s.pending[id] = &pendingEdit{
			revision:      s.revision,
			baseServerRev: s.serverRevs[id],
			base:          clonePtr(ch.Before),
			local:         clonePtr(ch.After),
		}
	}
	s.outbox = append(s.outbox, msg)
	return msg
}

func (s *Sync) openConflictLocked(id string, p *pendingEdit, theirs *region.Region, from string, serverRev int64) Conflict {
	c := &Conflict{
		RegionID:       id,
		Base:           p.base,
		Mine:           p.local,
		Theirs:         theirs,
		TheirClientID:  from,
		ServerRevision: serverRev,
		DetectedAt:     time.Now(),
	}
	s.conflicts[id] = c
	delete(s.pending, id)
	s.outbox = filterOutbox(s.outbox, func(m Message) bool { return m.RegionID == id })

	s.logger.Warn("conflict detected", "region_id", id, "with", from, "server_revision", serverRev)
	return *c
}

// placementConflictLocked holds a remote edit that collides with other
// local regions. Mine is the local copy of the region, or nil when it does
// not exist here.
func (s *Sync) placementConflictLocked(id string, theirs *region.Region, from string, serverRev int64) Conflict {
	var mine *region.Region
	if r, ok := s.opts.Applier.LocalRegion(id); ok {
		mine = &r
	}
	c := &Conflict{
		RegionID:       id,
		Base:           clonePtr(mine),
		Mine:           mine,
		Theirs:         theirs,
		TheirClientID:  from,
		ServerRevision: serverRev,
		DetectedAt:     time.Now(),
	}
	s.conflicts[id] = c

	s.logger.Warn("remote edit collides with local layout", "region_id", id, "with", from, "server_revision", serverRev)
	return *c
}

func (s *Sync) applyLocked(id string, r *region.Region) error {
	if r == nil {
		return s.opts.Applier.RemoveRemote(id)
	}
	return s.opts.Applier.ApplyRemote(*r)
}

func (s *Sync) notifyConflicts(conflicts ...Conflict) {
	if s.opts.OnConflict == nil {
		return
	}
	for _, c := range conflicts {
		s.opts.OnConflict(c)
	}
}

func (s *Sync) liveConnLocked() (Conn, uint64) {
	if s.state != StateConnected {
		return nil, s.gen
	}
	return s.conn, s.gen
}

// sendAll must be called with sendMu held.
func (s *Sync) sendAll(ctx context.Context, conn Conn, gen uint64, msgs []Message) {
	if conn == nil {
		return
	}
	for _, m := range msgs {
		if err := conn.Send(ctx, m); err != nil {
			s.connectionLost(gen, err)
			return
		}
	}
}

func (s *Sync) connectionLost(gen uint64, err error) {
	s.dropConnection(gen, err, true)
}

func (s *Sync) dropConnection(gen uint64, cause error, reconnect bool) {
	s.mu.Lock()
	if gen != s.gen || (s.state != StateConnecting && s.state != StateConnected) {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.gen++
	s.transitionLocked(StateDisconnected)
	s.stopHeartbeatLocked()
	queued := len(s.outbox)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.logger.Warn("collaboration disconnected", "queued", queued, "error", cause)

	if reconnect && s.opts.Reconnect {
		s.scheduleReconnect()
	}
}

func (s *Sync) scheduleReconnect() {
	s.mu.Lock()
	if s.reconnecting || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
		}()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.opts.ReconnectInitial

		_, err := backoff.Retry(s.ctx, func() (struct{}, error) {
			if err := s.Connect(s.ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return struct{}{}, backoff.Permanent(err)
				}
				return struct{}{}, err
			}
			return struct{}{}, nil
		},
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(s.opts.ReconnectMaxElapsed),
			backoff.WithNotify(func(err error, next time.Duration) {
				s.logger.Debug("reconnect failed", "retry_in", next, "error", err)
			}),
		)
		if err != nil && !errors.Is(err, ErrClosed) && s.ctx.Err() == nil {
			s.logger.Error("giving up on reconnect", "error", err)
		}
	}()
}

func (s *Sync) startHeartbeatLocked(gen uint64) {
	if s.opts.HeartbeatInterval < 0 {
		return
	}
	s.stopHeartbeatLocked()
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopHeartbeat = cancel
	go s.heartbeat(ctx, gen)
}

func (s *Sync) stopHeartbeatLocked() {
	if s.stopHeartbeat != nil {
		s.stopHeartbeat()
		s.stopHeartbeat = nil
	}
}

func (s *Sync) heartbeat(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ping(ctx, gen)
		}
	}
}

func (s *Sync) ping(ctx context.Context, gen uint64) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	conn, cur := s.liveConnLocked()
	s.mu.Unlock()
	if conn == nil || cur != gen {
		return
	}

	payload, _ := json.Marshal(pingPayload{SentAt: time.Now().UnixNano()})
	if err := conn.Send(ctx, Message{Type: TypePing, LayoutID: s.opts.LayoutID, ClientID: s.opts.ClientID, Payload: payload}); err != nil {
		s.connectionLost(gen, err)
	}
}

func (s *Sync) transitionLocked(next ConnectionState) {
	if err := s.state.validateTransitionTo(next); err != nil {
		s.logger.Error("connection state", "error", err)
		return
	}
	s.state = next
	s.logger.Debug("connection state changed", "state", next)
}

func stateRegion(st RegionState) (*region.Region, error) {
	if st.Deleted || len(st.Region) == 0 {
		return nil, nil
	}
	r, err := decodeRegion(st.Region)
	if err != nil {
		return nil, fmt.Errorf("decoding region %s: %w", st.RegionID, err)
	}
	return &r, nil
}

func filterOutbox(outbox []Message, drop func(Message) bool) []Message {
	out := outbox[:0]
	for _, m := range outbox {
		if !drop(m) {
			out = append(out, m)
		}
	}
	return out
}

func clonePtr(r *region.Region) *region.Region {
	if r == nil {
		return nil
	}
	return regionPtr(*r)
}
