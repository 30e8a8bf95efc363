package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/permission"
)

var (
	// ErrHubClosed indicates the hub has shut down.
	ErrHubClosed = errors.New("collaboration hub closed")
	// ErrSlowConsumer indicates a member fell too far behind and was dropped.
	ErrSlowConsumer = errors.New("collaboration member too slow")
	// ErrNotMember indicates a message from a connection that already left.
	ErrNotMember = errors.New("not a member of the room")
)

const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 10 * time.Second
)

// HubOptions configures a Hub.
type HubOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	// Authorize admits a websocket principal to a layout's room. Nil admits
	// everyone who got past the auth middleware.
	Authorize func(ctx context.Context, p permission.Principal, layoutID string) error
}

// Hub relays collaboration traffic. Each layout gets a collab.Room that
// orders edits; every member receives through its own buffered queue.
// Rooms live until the hub shuts down so server revisions stay monotonic
// across reconnects.
type Hub struct {
	opts     HubOptions
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]*hubRoom
	closed bool
}

type hubRoom struct {
	room *collab.Room

	// mu orders Handle with the fan-out that follows it.
	mu      sync.Mutex
	members map[string]*member
}

// NewHub creates a hub.
func NewHub(opts HubOptions, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Hub{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*hubRoom),
	}
}

// Members returns the number of clients connected to a layout.
func (h *Hub) Members(layoutID string) int {
	h.mu.Lock()
	rm, ok := h.rooms[layoutID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Room returns the authoritative room for a layout, if one exists.
func (h *Hub) Room(layoutID string) (*collab.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[layoutID]
	if !ok {
		return nil, false
	}
	return rm.room, true
}

// Dial connects an in-process client. It implements collab.Dialer.
func (h *Hub) Dial(ctx context.Context, layoutID, clientID string, handler collab.Handler) (collab.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := newMember(layoutID, clientID, h.opts.QueueSize,
		func(msg collab.Message) error {
			handler.HandleMessage(msg)
			return nil
		},
		handler.HandleDisconnect,
	)
	if err := h.join(m); err != nil {
		return nil, err
	}
	return &localConn{hub: h, m: m}, nil
}

// ServeWS upgrades the request and relays the layout named by the
// {layoutID} route parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	layoutID := chi.URLParam(r, "layoutID")
	if layoutID == "" {
		http.Error(w, "missing layout id", http.StatusBadRequest)
		return
	}
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if h.opts.Authorize != nil {
		if err := h.opts.Authorize(r.Context(), p, layoutID); err != nil {
			writeError(w, err)
			return
		}
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "layout_id", layoutID, "error", err)
		return
	}
	defer conn.Close()

	m := newMember(layoutID, clientID, h.opts.QueueSize,
		func(msg collab.Message) error {
			if err := conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return err
			}
			return conn.WriteJSON(msg)
		},
		func(error) { _ = conn.Close() },
	)
	if err := h.join(m); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()))
		return
	}
	defer h.leave(m)

	logger := h.logger.With("layout_id", layoutID, "client_id", clientID, "user_id", p.UserID)
	logger.Debug("collaborator connected")

	for {
		var msg collab.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("collaborator read failed", "error", err)
			} else {
				logger.Debug("collaborator disconnected")
			}
			return
		}
		if err := h.handle(m, msg); err != nil {
			return
		}
	}
}

// Shutdown disconnects every member.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	rooms := h.rooms
	h.mu.Unlock()

	var dropped []*member
	for _, rm := range rooms {
		rm.mu.Lock()
		for id, m := range rm.members {
			delete(rm.members, id)
			dropped = append(dropped, m)
		}
		rm.mu.Unlock()
	}
	for _, m := range dropped {
		m.drop(ErrHubClosed)
	}
}

func (h *Hub) join(m *member) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	rm, ok := h.rooms[m.layoutID]
	if !ok {
		rm = &hubRoom{room: collab.NewRoom(m.layoutID), members: make(map[string]*member)}
		h.rooms[m.layoutID] = rm
	}
	h.mu.Unlock()

	rm.mu.Lock()
	prev := rm.members[m.clientID]
	rm.members[m.clientID] = m
	rm.mu.Unlock()

	if prev != nil {
		prev.drop(ErrNotMember)
	}
	m.start()
	return nil
}

func (h *Hub) room(layoutID string) *hubRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[layoutID]
}

func (h *Hub) handle(m *member, msg collab.Message) error {
	rm := h.room(m.layoutID)
	if rm == nil {
		return ErrNotMember
	}
	msg.ClientID = m.clientID
	msg.LayoutID = m.layoutID

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.members[m.clientID] != m {
		return ErrNotMember
	}
	out := rm.room.Handle(msg)
	if out.Reply != nil {
		h.enqueue(m, *out.Reply)
	}
	if out.Broadcast != nil {
		h.broadcastLocked(rm, m.clientID, *out.Broadcast)
	}
	return nil
}

func (h *Hub) leave(m *member) {
	rm := h.room(m.layoutID)
	if rm == nil {
		m.stop()
		return
	}

	rm.mu.Lock()
	if rm.members[m.clientID] == m {
		delete(rm.members, m.clientID)
		if out := rm.room.Leave(m.clientID); out.Broadcast != nil {
			h.broadcastLocked(rm, m.clientID, *out.Broadcast)
		}
	}
	rm.mu.Unlock()
	m.stop()
}

func (h *Hub) broadcastLocked(rm *hubRoom, from string, msg collab.Message) {
	for id, other := range rm.members {
		if id == from {
			continue
		}
		h.enqueue(other, msg)
	}
}

// enqueue never blocks; a full queue evicts the member.
func (h *Hub) enqueue(m *member, msg collab.Message) {
	if m.offer(msg) {
		return
	}
	h.logger.Warn("dropping slow collaborator", "layout_id", m.layoutID, "client_id", m.clientID)
	go h.evict(m, ErrSlowConsumer)
}

func (h *Hub) evict(m *member, cause error) {
	h.leave(m)
	m.drop(cause)
}

// member is one connected client with its own delivery goroutine.
type member struct {
	layoutID string
	clientID string
	queue    chan collab.Message
	done     chan struct{}
	stopOnce sync.Once
	dropOnce sync.Once
	deliver  func(collab.Message) error
	onDrop   func(error)
}

func newMember(layoutID, clientID string, size int, deliver func(collab.Message) error, onDrop func(error)) *member {
	return &member{
		layoutID: layoutID,
		clientID: clientID,
		queue:    make(chan collab.Message, size),
		done:     make(chan struct{}),
		deliver:  deliver,
		onDrop:   onDrop,
	}
}

func (m *member) start() {
	go m.pump()
}

func (m *member) pump() {
	for {
		select {
		case <-m.done:
			return
		case msg := <-m.queue:
			if err := m.deliver(msg); err != nil {
				m.stop()
				m.drop(err)
				return
			}
		}
	}
}

func (m *member) offer(msg collab.Message) bool {
	select {
	case <-m.done:
		return true
	default:
	}
	select {
	case m.queue <- msg:
		return true
	default:
		return false
	}
}

func (m *member) stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// drop stops the member and reports cause to its owner once.
func (m *member) drop(cause error) {
	m.stop()
	m.dropOnce.Do(func() {
		if m.onDrop != nil {
			m.onDrop(cause)
		}
	})
}

// localConn is the collab.Conn handed out by Dial.
type localConn struct {
	hub *Hub
	m   *member
}

func (c *localConn) Send(ctx context.Context, msg collab.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.m.done:
		return ErrNotMember
	default:
	}
	return c.hub.handle(c.m, msg)
}

// Close leaves the room without reporting a disconnect to the handler.
func (c *localConn) Close() error {
	c.m.dropOnce.Do(func() {})
	c.hub.leave(c.m)
	return nil
}
