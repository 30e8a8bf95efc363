package collab

import (
	"encoding/json"
	"sort"
	"sync"
)

// Room is the hub-side authority for one layout. It orders edits per region
// with a server revision and refuses edits made against a revision another
// client has since replaced.
type Room struct {
	mu         sync.Mutex
	layoutID   string
	regions    map[string]*RegionState
	clientRevs map[string]map[string]int64
	users      map[string]User
}

// Outcome is what the hub must send after handling a message.
type Outcome struct {
	Reply     *Message
	Broadcast *Message
}

// NewRoom creates an empty room.
func NewRoom(layoutID string) *Room {
	return &Room{
		layoutID:   layoutID,
		regions:    make(map[string]*RegionState),
		clientRevs: make(map[string]map[string]int64),
		users:      make(map[string]User),
	}
}

// LayoutID returns the layout this room serves.
func (r *Room) LayoutID() string {
	return r.layoutID
}

// Handle applies an inbound message from msg.ClientID.
func (r *Room) Handle(msg Message) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.LayoutID = r.layoutID

	switch msg.Type {
	case TypeJoin:
		user := r.presenceLocked(msg)
		snap := r.snapshotLocked()
		return Outcome{Reply: &snap, Broadcast: r.presenceMessage(msg.ClientID, user)}
	case TypePresence:
		user := r.presenceLocked(msg)
		return Outcome{Broadcast: r.presenceMessage(msg.ClientID, user)}
	case TypePing:
		return Outcome{Reply: &Message{Type: TypePong, LayoutID: r.layoutID, ClientID: msg.ClientID, Payload: msg.Payload}}
	case TypeEdit, TypeDelete:
		if msg.RegionID == "" || msg.ClientID == "" {
			return Outcome{}
		}
		return r.editLocked(msg)
	}
	return Outcome{}
}

// Leave removes a client from the roster.
func (r *Room) Leave(clientID string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[clientID]
	if !ok {
		return Outcome{}
	}
	delete(r.users, clientID)
	user.IsActive = false
	return Outcome{Broadcast: r.presenceMessage(clientID, user)}
}

// Members returns the number of connected clients.
func (r *Room) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Snapshot returns the current region states and roster.
func (r *Room) Snapshot() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// State returns the hub's state for one region.
func (r *Room) State(regionID string) (RegionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.regions[regionID]
	if !ok {
		return RegionState{}, false
	}
	return *st, true
}

func (r *Room) editLocked(msg Message) Outcome {
	id := msg.RegionID
	revs := r.clientRevs[id]
	if revs == nil {
		revs = make(map[string]int64)
		r.clientRevs[id] = revs
	}
	st := r.regions[id]

	// Replays of edits the hub already accepted get a fresh ack.
	if msg.Revision <= revs[msg.ClientID] {
		var current int64
		if st != nil {
			current = st.ServerRevision
		}
		return Outcome{Reply: r.ack(msg, current)}
	}

	if st != nil && msg.BaseRevision < st.ServerRevision && st.LastWriter != msg.ClientID {
		payload, _ := json.Marshal(st)
		return Outcome{Reply: &Message{
			Type:           TypeReject,
			LayoutID:       r.layoutID,
			RegionID:       id,
			ClientID:       msg.ClientID,
			Revision:       msg.Revision,
			ServerRevision: st.ServerRevision,
			Payload:        payload,
		}}
	}

	if st == nil {
		st = &RegionState{RegionID: id}
		r.regions[id] = st
	}
	st.ServerRevision++
	st.LastWriter = msg.ClientID
	st.Deleted = msg.Type == TypeDelete
	if st.Deleted {
		st.Region = nil
	} else {
		st.Region = append(json.RawMessage(nil), msg.Payload...)
	}
	revs[msg.ClientID] = msg.Revision

	out := msg
	out.ServerRevision = st.ServerRevision
	return Outcome{Reply: r.ack(msg, st.ServerRevision), Broadcast: &out}
}

func (r *Room) ack(msg Message, serverRev int64) *Message {
	return &Message{
		Type:           TypeAck,
		LayoutID:       r.layoutID,
		RegionID:       msg.RegionID,
		ClientID:       msg.ClientID,
		Revision:       msg.Revision,
		ServerRevision: serverRev,
	}
}

func (r *Room) presenceLocked(msg Message) User {
	var user User
	if len(msg.Payload) > 0 {
		_ = json.Unmarshal(msg.Payload, &user)
	}
	user.ClientID = msg.ClientID
	user.IsActive = true
	r.users[msg.ClientID] = user
	return user
}

func (r *Room) presenceMessage(clientID string, user User) *Message {
	payload, _ := json.Marshal(user)
	return &Message{Type: TypePresence, LayoutID: r.layoutID, ClientID: clientID, Payload: payload}
}

func (r *Room) snapshotLocked() Message {
	snap := Snapshot{
		Regions: make([]RegionState, 0, len(r.regions)),
		Users:   make([]User, 0, len(r.users)),
	}
	for _, st := range r.regions {
		snap.Regions = append(snap.Regions, *st)
	}
	for _, u := range r.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Regions, func(i, j int) bool { return snap.Regions[i].RegionID < snap.Regions[j].RegionID })
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ClientID < snap.Users[j].ClientID })

	payload, _ := json.Marshal(snap)
	return Message{Type: TypeSnapshot, LayoutID: r.layoutID, Payload: payload}
}
