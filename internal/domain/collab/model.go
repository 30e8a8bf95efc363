package collab

import (
	"encoding/json"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

// MessageType identifies a wire message.
type MessageType string

const (
	TypeJoin     MessageType = "join"
	TypeEdit     MessageType = "edit"
	TypeDelete   MessageType = "delete"
	TypeAck      MessageType = "ack"
	TypeReject   MessageType = "reject"
	TypeSnapshot MessageType = "snapshot"
	TypePresence MessageType = "presence"
	TypePing     MessageType = "ping"
	TypePong     MessageType = "pong"
)

// Message is the envelope exchanged over the collaboration channel.
//
// Revision is the sender's local counter. ServerRevision is stamped by the
// hub on everything it accepts, and BaseRevision is the server revision of
// the region the sender last saw when it made the edit.
type Message struct {
	Type           MessageType     `json:"type"`
	LayoutID       string          `json:"layoutId"`
	RegionID       string          `json:"regionId,omitempty"`
	ClientID       string          `json:"clientId,omitempty"`
	Revision       int64           `json:"revision,omitempty"`
	BaseRevision   int64           `json:"baseRevision,omitempty"`
	ServerRevision int64           `json:"serverRevision,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// RegionState is the hub's view of one region.
type RegionState struct {
	RegionID       string          `json:"regionId"`
	ServerRevision int64           `json:"serverRevision"`
	LastWriter     string          `json:"lastWriter"`
	Deleted        bool            `json:"deleted,omitempty"`
	Region         json.RawMessage `json:"region,omitempty"`
}

// Snapshot is the payload of a snapshot message.
type Snapshot struct {
	Regions []RegionState `json:"regions"`
	Users   []User        `json:"users"`
}

// User is a connected collaborator, shown as a presence indicator.
type User struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Color    string `json:"color,omitempty"`
	IsActive bool   `json:"isActive"`
}

// Choice is how the user resolves a conflict.
type Choice string

const (
	KeepMine   Choice = "keep_mine"
	TakeTheirs Choice = "take_theirs"
	Merge      Choice = "merge"
)

// Valid reports whether c is a known choice.
func (c Choice) Valid() bool {
	switch c {
	case KeepMine, TakeTheirs, Merge:
		return true
	}
	return false
}

// Conflict is a remote change that arrived while a local change to the same
// region was still unacknowledged.
type Conflict struct {
	RegionID       string         `json:"region_id"`
	Base           *region.Region `json:"base,omitempty"`
	Mine           *region.Region `json:"mine,omitempty"`
	Theirs         *region.Region `json:"theirs,omitempty"`
	TheirClientID  string         `json:"their_client_id,omitempty"`
	ServerRevision int64          `json:"server_revision"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// MineDeleted reports whether the local side removed the region.
func (c Conflict) MineDeleted() bool { return c.Mine == nil }

// TheirsDeleted reports whether the remote side removed the region.
func (c Conflict) TheirsDeleted() bool { return c.Theirs == nil }

func encodeRegion(r region.Region) json.RawMessage {
	data, _ := json.Marshal(r)
	return data
}

func decodeRegion(data json.RawMessage) (region.Region, error) {
	var r region.Region
	err := json.Unmarshal(data, &r)
	return r, err
}

func regionPtr(r region.Region) *region.Region {
	c := r.Clone()
	return &c
}
