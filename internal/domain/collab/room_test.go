package collab_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/collab"
)

func edit(client, regionID string, rev, base int64) collab.Message {
	return collab.Message{
		Type:         collab.TypeEdit,
		RegionID:     regionID,
		ClientID:     client,
		Revision:     rev,
		BaseRevision: base,
		Payload:      json.RawMessage(`{"id":"` + regionID + `"}`),
	}
}

func TestRoom_AcceptsAndBroadcasts(t *testing.T) {
	room := collab.NewRoom("l1")

	out := room.Handle(edit("a", "r", 1, 0))
	require.Equal(t, collab.TypeAck, out.Reply.Type)
	require.Equal(t, int64(1), out.Reply.ServerRevision)
	require.Equal(t, int64(1), out.Reply.Revision)
	require.NotNil(t, out.Broadcast)
	require.Equal(t, "a", out.Broadcast.ClientID)
	require.Equal(t, int64(1), out.Broadcast.ServerRevision)
	require.Equal(t, "l1", out.Broadcast.LayoutID)

	// Same writer may build on its own unacknowledged edit.
	out = room.Handle(edit("a", "r", 2, 0))
	require.Equal(t, collab.TypeAck, out.Reply.Type)
	require.Equal(t, int64(2), out.Reply.ServerRevision)

	st, ok := room.State("r")
	require.True(t, ok)
	require.Equal(t, "a", st.LastWriter)
}

func TestRoom_RejectsStaleBaseFromOtherWriter(t *testing.T) {
	room := collab.NewRoom("l1")
	room.Handle(edit("a", "r", 1, 0))

	out := room.Handle(edit("b", "r", 1, 0))
	require.Equal(t, collab.TypeReject, out.Reply.Type)
	require.Nil(t, out.Broadcast)

	var st collab.RegionState
	require.NoError(t, json.Unmarshal(out.Reply.Payload, &st))
	require.Equal(t, int64(1), st.ServerRevision)
	require.Equal(t, "a", st.LastWriter)

	out = room.Handle(edit("b", "r", 2, 1))
	require.Equal(t, collab.TypeAck, out.Reply.Type)
	require.Equal(t, int64(2), out.Reply.ServerRevision)
}

func TestRoom_ReplayedEditIsReacked(t *testing.T) {
	room := collab.NewRoom("l1")
	room.Handle(edit("a", "r", 3, 0))

	out := room.Handle(edit("a", "r", 3, 0))
	require.Equal(t, collab.TypeAck, out.Reply.Type)
	require.Equal(t, int64(1), out.Reply.ServerRevision)
	require.Nil(t, out.Broadcast)
}

func TestRoom_DeleteAndSnapshot(t *testing.T) {
	room := collab.NewRoom("l1")
	room.Handle(edit("a", "r1", 1, 0))
	room.Handle(edit("a", "r2", 2, 0))
	room.Handle(collab.Message{Type: collab.TypeDelete, RegionID: "r1", ClientID: "a", Revision: 3, BaseRevision: 1})

	out := room.Handle(collab.Message{Type: collab.TypeJoin, ClientID: "b", Payload: json.RawMessage(`{"id":"u2","name":"Bea"}`)})
	require.Equal(t, collab.TypeSnapshot, out.Reply.Type)
	require.Equal(t, collab.TypePresence, out.Broadcast.Type)

	var snap collab.Snapshot
	require.NoError(t, json.Unmarshal(out.Reply.Payload, &snap))
	require.Len(t, snap.Regions, 2)
	require.Equal(t, "r1", snap.Regions[0].RegionID)
	require.True(t, snap.Regions[0].Deleted)
	require.Empty(t, snap.Regions[0].Region)
	require.Len(t, snap.Users, 1)
	require.Equal(t, "Bea", snap.Users[0].Name)
	require.True(t, snap.Users[0].IsActive)
	require.Equal(t, 1, room.Members())

	leave := room.Leave("b")
	require.NotNil(t, leave.Broadcast)
	var u collab.User
	require.NoError(t, json.Unmarshal(leave.Broadcast.Payload, &u))
	require.False(t, u.IsActive)
	require.Zero(t, room.Members())
}

func TestRoom_PingPong(t *testing.T) {
	room := collab.NewRoom("l1")
	out := room.Handle(collab.Message{Type: collab.TypePing, ClientID: "a", Payload: json.RawMessage(`{"sentAt":1}`)})
	require.Equal(t, collab.TypePong, out.Reply.Type)
	require.JSONEq(t, `{"sentAt":1}`, string(out.Reply.Payload))
}
