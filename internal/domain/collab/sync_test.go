package collab_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

type fixture struct {
	sync      *collab.Sync
	store     *region.Store
	dialer    *recordingDialer
	conflicts []collab.Conflict
}

func newFixture(t *testing.T, clientID string) *fixture {
	t.Helper()
	f := &fixture{store: region.NewStore("l1"), dialer: &recordingDialer{}}
	s, err := collab.NewSync(collab.Options{
		LayoutID:          "l1",
		ClientID:          clientID,
		Dialer:            f.dialer,
		Applier:           storeApplier{store: f.store},
		HeartbeatInterval: -1,
		OnConflict:        func(c collab.Conflict) { f.conflicts = append(f.conflicts, c) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	f.sync = s
	return f
}

func (f *fixture) connect(t *testing.T, snap collab.Snapshot) error {
	t.Helper()
	require.NoError(t, f.sync.Connect(context.Background()))
	require.Equal(t, collab.StateConnecting, f.sync.State())
	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	return f.sync.Receive(collab.Message{Type: collab.TypeSnapshot, LayoutID: "l1", Payload: payload})
}

func (f *fixture) add(t *testing.T, r region.Region) {
	t.Helper()
	require.NoError(t, f.sync.Commit(context.Background(), []string{r.ID}, func() ([]collab.Change, error) {
		added, err := f.store.Add(r)
		if err != nil {
			return nil, err
		}
		return []collab.Change{{After: &added}}, nil
	}))
}

func (f *fixture) move(t *testing.T, id string, row, col int) error {
	t.Helper()
	return f.sync.Commit(context.Background(), []string{id}, func() ([]collab.Change, error) {
		before, err := f.store.Get(id)
		if err != nil {
			return nil, err
		}
		after, err := f.store.Update(id, region.Patch{GridRow: &row, GridCol: &col})
		if err != nil {
			return nil, err
		}
		return []collab.Change{{Before: &before, After: &after}}, nil
	})
}

func remoteEdit(t *testing.T, from string, rev, serverRev int64, r region.Region) collab.Message {
	t.Helper()
	payload, err := json.Marshal(r)
	require.NoError(t, err)
	return collab.Message{
		Type:           collab.TypeEdit,
		LayoutID:       "l1",
		RegionID:       r.ID,
		ClientID:       from,
		Revision:       rev,
		ServerRevision: serverRev,
		Payload:        payload,
	}
}

func TestSync_ConnectWaitsForSnapshot(t *testing.T) {
	f := newFixture(t, "a")
	require.Equal(t, collab.StateDisconnected, f.sync.State())
	require.NoError(t, f.connect(t, collab.Snapshot{Users: []collab.User{{ClientID: "b", Name: "Bea", IsActive: true}}}))

	require.Equal(t, collab.StateConnected, f.sync.State())
	joins := f.dialer.last().messages(collab.TypeJoin)
	require.Len(t, joins, 1)
	require.Equal(t, "a", joins[0].ClientID)
	require.Len(t, f.sync.Roster(), 1)
}

func TestSync_ConflictWhenRemoteEditArrivesBeforeAck(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	base := rect("r", 0, 0, 1, 1)
	_, err := a.store.Put(base)
	require.NoError(t, err)

	require.NoError(t, a.move(t, "r", 0, 4))
	require.True(t, a.sync.Pending("r"))

	theirs := base
	theirs.GridRow = 3
	err = a.sync.Receive(remoteEdit(t, "b", 1, 1, theirs))

	var conflictErr *collab.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.ErrorIs(t, err, collab.ErrConflict)
	require.Equal(t, "r", conflictErr.Conflict.RegionID)
	require.Equal(t, "b", conflictErr.Conflict.TheirClientID)
	require.Len(t, a.conflicts, 1)

	got, err := a.store.Get("r")
	require.NoError(t, err)
	require.Equal(t, 0, got.GridRow)
	require.Equal(t, 4, got.GridCol)

	c, ok := a.sync.Conflict("r")
	require.True(t, ok)
	require.Equal(t, 0, c.Base.GridCol)
	require.Equal(t, 4, c.Mine.GridCol)
	require.Equal(t, 3, c.Theirs.GridRow)
	require.Zero(t, a.sync.OutboxLen())

	require.ErrorIs(t, a.move(t, "r", 1, 1), collab.ErrConflict)

	kept, err := a.sync.Resolve(ctx, "r", collab.KeepMine)
	require.NoError(t, err)
	require.Equal(t, 4, kept.GridCol)
	edits := a.dialer.last().messages(collab.TypeEdit)
	require.Len(t, edits, 2)
	require.Equal(t, int64(1), edits[1].BaseRevision)
	require.True(t, a.sync.Pending("r"))

	_, err = a.sync.Resolve(ctx, "r", collab.KeepMine)
	require.ErrorIs(t, err, collab.ErrNoConflict)
}

func TestSync_RemoteEditAppliedWithoutPending(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	require.NoError(t, a.sync.Receive(remoteEdit(t, "b", 1, 1, rect("r", 2, 2, 1, 1))))
	got, err := a.store.Get("r")
	require.NoError(t, err)
	require.Equal(t, 2, got.GridRow)

	// An older revision from the same sender is ignored.
	require.NoError(t, a.sync.Receive(remoteEdit(t, "b", 1, 1, rect("r", 5, 5, 1, 1))))
	got, _ = a.store.Get("r")
	require.Equal(t, 2, got.GridRow)

	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypeDelete, RegionID: "r", ClientID: "b", Revision: 2, ServerRevision: 2}))
	_, err = a.store.Get("r")
	require.ErrorIs(t, err, region.ErrRegionNotFound)
}

func TestSync_AckClearsPending(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	a.add(t, rect("r", 0, 0, 1, 1))
	require.NoError(t, a.move(t, "r", 1, 0))
	require.Equal(t, 2, a.sync.OutboxLen())

	edits := a.dialer.last().messages(collab.TypeEdit)
	require.Len(t, edits, 2)
	require.Less(t, edits[0].Revision, edits[1].Revision)

	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypeAck, RegionID: "r", Revision: edits[0].Revision, ServerRevision: 1}))
	require.True(t, a.sync.Pending("r"))
	require.Equal(t, 1, a.sync.OutboxLen())

	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypeAck, RegionID: "r", Revision: edits[1].Revision, ServerRevision: 2}))
	require.False(t, a.sync.Pending("r"))
	require.Zero(t, a.sync.OutboxLen())

	require.NoError(t, a.sync.Receive(remoteEdit(t, "b", 1, 3, rect("r", 4, 0, 1, 1))))
	got, _ := a.store.Get("r")
	require.Equal(t, 4, got.GridRow)
	require.Empty(t, a.conflicts)
}

func TestSync_RejectOpensConflict(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))
	a.add(t, rect("r", 0, 0, 1, 1))

	st, err := json.Marshal(collab.RegionState{
		RegionID:       "r",
		ServerRevision: 4,
		LastWriter:     "b",
		Region:         mustJSON(t, rect("r", 6, 0, 1, 1)),
	})
	require.NoError(t, err)

	err = a.sync.Receive(collab.Message{Type: collab.TypeReject, RegionID: "r", Revision: 1, ServerRevision: 4, Payload: st})
	require.ErrorIs(t, err, collab.ErrConflict)
	require.Zero(t, a.sync.OutboxLen())

	theirs, err := a.sync.Resolve(context.Background(), "r", collab.TakeTheirs)
	require.NoError(t, err)
	require.Equal(t, 6, theirs.GridRow)
	got, _ := a.store.Get("r")
	require.Equal(t, 6, got.GridRow)
	require.False(t, a.sync.Pending("r"))
}

func TestSync_QueuesWhileDisconnectedAndReplays(t *testing.T) {
	a := newFixture(t, "a")

	a.add(t, rect("r1", 0, 0, 1, 1))
	a.add(t, rect("r2", 0, 2, 1, 1))
	a.add(t, rect("r3", 0, 4, 1, 1))
	require.Equal(t, 3, a.sync.OutboxLen())
	require.Nil(t, a.dialer.last())

	err := a.connect(t, collab.Snapshot{Regions: []collab.RegionState{
		// r1 was written by someone else while we were away.
		{RegionID: "r1", ServerRevision: 1, LastWriter: "b", Region: mustJSON(t, rect("r1", 5, 0, 1, 1))},
		// r3 already reached the hub before the connection dropped.
		{RegionID: "r3", ServerRevision: 1, LastWriter: "a", Region: mustJSON(t, rect("r3", 0, 4, 1, 1))},
		// r4 is new to us.
		{RegionID: "r4", ServerRevision: 2, LastWriter: "b", Region: mustJSON(t, rect("r4", 9, 0, 1, 1))},
	}})
	require.ErrorIs(t, err, collab.ErrConflict)
	require.Equal(t, collab.StateConnected, a.sync.State())

	replayed := a.dialer.last().messages(collab.TypeEdit)
	require.Len(t, replayed, 2)
	require.Equal(t, "r2", replayed[0].RegionID)
	require.Equal(t, "r3", replayed[1].RegionID)

	_, ok := a.sync.Conflict("r1")
	require.True(t, ok)
	got, _ := a.store.Get("r1")
	require.Equal(t, 0, got.GridRow)

	_, err = a.store.Get("r4")
	require.NoError(t, err)
}

func TestSync_MergeResolution(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	base := rect("r", 0, 0, 1, 1)
	base.Config = json.RawMessage(`{"title":"old"}`)
	_, err := a.store.Put(base)
	require.NoError(t, err)
	require.NoError(t, a.move(t, "r", 0, 2))

	theirs := base.Clone()
	theirs.Config = json.RawMessage(`{"title":"new"}`)
	require.ErrorIs(t, a.sync.Receive(remoteEdit(t, "b", 1, 1, theirs)), collab.ErrConflict)

	merged, err := a.sync.Resolve(context.Background(), "r", collab.Merge)
	require.NoError(t, err)
	require.Equal(t, 2, merged.GridCol)
	require.JSONEq(t, `{"title":"new"}`, string(merged.Config))

	got, _ := a.store.Get("r")
	require.Equal(t, 2, got.GridCol)
	require.JSONEq(t, `{"title":"new"}`, string(got.Config))
}

func TestSync_LocalDeleteCannotMerge(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	base := rect("r", 0, 0, 1, 1)
	_, err := a.store.Put(base)
	require.NoError(t, err)

	require.NoError(t, a.sync.Commit(context.Background(), []string{"r"}, func() ([]collab.Change, error) {
		before, err := a.store.Get("r")
		if err != nil {
			return nil, err
		}
		if _, err := a.store.Remove("r"); err != nil {
			return nil, err
		}
		return []collab.Change{{Before: &before}}, nil
	}))
	deletes := a.dialer.last().messages(collab.TypeDelete)
	require.Len(t, deletes, 1)

	theirs := base
	theirs.GridRow = 2
	require.ErrorIs(t, a.sync.Receive(remoteEdit(t, "b", 1, 1, theirs)), collab.ErrConflict)
	c, ok := a.sync.Conflict("r")
	require.True(t, ok)
	require.True(t, c.MineDeleted())

	_, err = a.sync.Resolve(context.Background(), "r", collab.Merge)
	require.ErrorIs(t, err, collab.ErrCannotMerge)
	_, ok = a.sync.Conflict("r")
	require.True(t, ok)

	restored, err := a.sync.Resolve(context.Background(), "r", collab.TakeTheirs)
	require.NoError(t, err)
	require.Equal(t, 2, restored.GridRow)
	got, err := a.store.Get("r")
	require.NoError(t, err)
	require.Equal(t, 2, got.GridRow)
}

func TestSync_DisconnectKeepsQueueAndStopsHeartbeat(t *testing.T) {
	store := region.NewStore("l1")
	dialer := &recordingDialer{}
	s, err := collab.NewSync(collab.Options{
		LayoutID:          "l1",
		ClientID:          "a",
		Dialer:            dialer,
		Applier:           storeApplier{store: store},
		HeartbeatInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Receive(collab.Message{Type: collab.TypeSnapshot, Payload: json.RawMessage(`{"regions":[],"users":[]}`)}))
	require.True(t, s.HeartbeatRunning())
	require.Eventually(t, func() bool {
		return len(dialer.last().messages(collab.TypePing)) > 0
	}, time.Second, 5*time.Millisecond)

	s.Disconnect()
	require.Equal(t, collab.StateDisconnected, s.State())
	require.False(t, s.HeartbeatRunning())
	require.True(t, dialer.last().isClosed())

	require.NoError(t, s.Commit(context.Background(), []string{"r"}, func() ([]collab.Change, error) {
		r, err := store.Add(rect("r", 0, 0, 1, 1))
		return []collab.Change{{After: &r}}, err
	}))
	require.Equal(t, 1, s.OutboxLen())
	require.Empty(t, dialer.last().messages(collab.TypeEdit))
}

func TestSync_SendFailureDisconnects(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))
	a.dialer.last().failWith(errors.New("broken pipe"))

	a.add(t, rect("r", 0, 0, 1, 1))
	require.Equal(t, collab.StateDisconnected, a.sync.State())
	require.Equal(t, 1, a.sync.OutboxLen())
}

func TestSync_DialFailureReturnsToDisconnected(t *testing.T) {
	a := newFixture(t, "a")
	a.dialer.err = errors.New("refused")
	require.Error(t, a.sync.Connect(context.Background()))
	require.Equal(t, collab.StateDisconnected, a.sync.State())
}

func TestSync_ClosedRefusesWork(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.sync.Close())
	require.Equal(t, collab.StateClosed, a.sync.State())
	require.ErrorIs(t, a.sync.Connect(context.Background()), collab.ErrClosed)
	require.ErrorIs(t, a.sync.Commit(context.Background(), nil, func() ([]collab.Change, error) { return nil, nil }), collab.ErrClosed)
}

func TestSync_PongUpdatesLatency(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	sent := time.Now().Add(-20 * time.Millisecond).UnixNano()
	payload := json.RawMessage(`{"sentAt":` + jsonInt(sent) + `}`)
	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypePong, Payload: payload}))
	require.GreaterOrEqual(t, a.sync.Latency(), 20*time.Millisecond)
}

func TestSync_PresenceRoster(t *testing.T) {
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypePresence, ClientID: "b", Payload: mustJSON(t, collab.User{ID: "u2", ClientID: "b", IsActive: true})}))
	require.Len(t, a.sync.Roster(), 1)
	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypePresence, ClientID: "b", Payload: mustJSON(t, collab.User{ID: "u2", ClientID: "b"})}))
	require.Empty(t, a.sync.Roster())
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func jsonInt(n int64) string {
	data, _ := json.Marshal(n)
	return string(data)
}

func TestSync_RemoteEditCollidingWithOtherRegionOpensConflict(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t, "a")
	require.NoError(t, a.connect(t, collab.Snapshot{}))

	_, err := a.store.Put(rect("a", 0, 0, 1, 2))
	require.NoError(t, err)
	_, err = a.store.Put(rect("b", 0, 2, 1, 2))
	require.NoError(t, err)

	require.NoError(t, a.move(t, "a", 0, 4))
	edits := a.dialer.last().messages(collab.TypeEdit)
	require.Len(t, edits, 1)
	require.NoError(t, a.sync.Receive(collab.Message{Type: collab.TypeAck, RegionID: "a", Revision: edits[0].Revision, ServerRevision: 1}))
	require.False(t, a.sync.Pending("a"))

	// A collaborator moved b into the cells a now holds.
	msg := remoteEdit(t, "b", 1, 1, rect("b", 0, 4, 1, 2))
	err = a.sync.Receive(msg)
	var conflictErr *collab.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "b", conflictErr.Conflict.RegionID)
	require.Len(t, a.conflicts, 1)

	c, ok := a.sync.Conflict("b")
	require.True(t, ok)
	require.Equal(t, 2, c.Mine.GridCol)
	require.Equal(t, 4, c.Theirs.GridCol)

	local, err := a.store.Get("b")
	require.NoError(t, err)
	require.Equal(t, 2, local.GridCol)

	// A redelivered copy changes nothing; the conflict stays open.
	require.NoError(t, a.sync.Receive(msg))
	require.Len(t, a.sync.Conflicts(), 1)

	_, err = a.sync.Resolve(ctx, "b", collab.TakeTheirs)
	require.ErrorIs(t, err, region.ErrOverlap)

	require.NoError(t, a.move(t, "a", 1, 4))
	taken, err := a.sync.Resolve(ctx, "b", collab.TakeTheirs)
	require.NoError(t, err)
	require.Equal(t, 4, taken.GridCol)

	local, err = a.store.Get("b")
	require.NoError(t, err)
	require.Equal(t, 0, local.GridRow)
	require.Equal(t, 4, local.GridCol)
	require.Empty(t, a.sync.Conflicts())
}

func TestSync_SnapshotCollisionKeepMineResendsLocal(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t, "a")

	_, err := a.store.Put(rect("a", 0, 4, 1, 2))
	require.NoError(t, err)
	_, err = a.store.Put(rect("b", 0, 2, 1, 2))
	require.NoError(t, err)

	payload, err := json.Marshal(rect("b", 0, 4, 1, 2))
	require.NoError(t, err)
	err = a.connect(t, collab.Snapshot{Regions: []collab.RegionState{
		{RegionID: "b", ServerRevision: 3, LastWriter: "b", Region: payload},
	}})
	require.ErrorIs(t, err, collab.ErrConflict)
	require.Equal(t, collab.StateConnected, a.sync.State())
	require.Len(t, a.conflicts, 1)

	kept, err := a.sync.Resolve(ctx, "b", collab.KeepMine)
	require.NoError(t, err)
	require.Equal(t, 2, kept.GridCol)

	edits := a.dialer.last().messages(collab.TypeEdit)
	require.Len(t, edits, 1)
	require.Equal(t, "b", edits[0].RegionID)
	require.Equal(t, int64(3), edits[0].BaseRevision)
}
