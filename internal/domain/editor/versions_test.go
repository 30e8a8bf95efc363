package editor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
)

func TestVersions_DraftPublishRevert(t *testing.T) {
	f := newFixture(t, inline(), rect("a", region.TypeAnalytics, 0, 0, 2, 6))
	ctx := context.Background()

	v1, err := f.ctrl.SaveDraft(ctx, f.sess, "first")
	require.NoError(t, err)
	require.Equal(t, 1, v1.Number)
	require.Equal(t, v1.ID, f.sess.WorkingVersionID())

	_, err = f.ctrl.Preview(ctx, f.sess, v1.ID)
	require.NoError(t, err)
	published, err := f.ctrl.Publish(ctx, f.sess, v1.ID, "")
	require.NoError(t, err)
	require.Equal(t, version.StatusPublished, published.Status)

	_, err = f.ctrl.MoveRegion(ctx, f.sess, "a", 5, 0)
	require.NoError(t, err)
	v2, err := f.ctrl.SaveDraft(ctx, f.sess, "moved")
	require.NoError(t, err)
	_, err = f.ctrl.Publish(ctx, f.sess, v2.ID, "ship it")
	require.NoError(t, err)

	old, err := f.versions.Get(ctx, tenantID, v1.ID)
	require.NoError(t, err)
	require.Equal(t, version.StatusArchived, old.Status)

	current, err := f.ctrl.CurrentVersion(ctx, f.sess)
	require.NoError(t, err)
	require.Equal(t, v2.ID, current.ID)
	require.Equal(t, "ship it", current.Notes)

	reverted, err := f.ctrl.Revert(ctx, f.sess, v1.ID)
	require.NoError(t, err)
	require.Equal(t, 3, reverted.Number)
	require.Equal(t, version.StatusDraft, reverted.Status)
	require.Equal(t, v1.ID, *reverted.RevertedFrom)
	require.Equal(t, reverted.ID, f.sess.WorkingVersionID())

	r, err := f.sess.Region("a")
	require.NoError(t, err)
	require.Equal(t, 0, r.GridRow)
	require.Equal(t, 0, f.storage.stored(layoutID)[0].GridRow)

	// the reverted-from snapshot is untouched
	old, err = f.versions.Get(ctx, tenantID, v1.ID)
	require.NoError(t, err)
	require.Len(t, old.Regions, 1)
	require.Equal(t, version.StatusArchived, old.Status)

	summaries, err := f.ctrl.ListVersions(ctx, f.sess)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	require.Equal(t, 3, summaries[0].Number)

	// revert is one undo step
	regions, err := f.ctrl.Undo(ctx, f.sess)
	require.NoError(t, err)
	require.Equal(t, 5, regions[0].GridRow)
}

func TestVersions_RejectsForeignVersion(t *testing.T) {
	f := newFixture(t, inline())
	ctx := context.Background()

	foreign := &version.Version{ID: "v-other", LayoutID: "other-layout", Status: version.StatusDraft}
	require.NoError(t, f.versions.Create(ctx, tenantID, foreign))

	_, err := f.ctrl.Publish(ctx, f.sess, "v-other", "")
	require.ErrorIs(t, err, version.ErrVersionNotFound)
	_, err = f.ctrl.Revert(ctx, f.sess, "v-other")
	require.ErrorIs(t, err, version.ErrVersionNotFound)
}

func TestVersions_NoCurrentBeforePublish(t *testing.T) {
	f := newFixture(t, inline())
	ctx := context.Background()

	_, err := f.ctrl.SaveDraft(ctx, f.sess, "")
	require.NoError(t, err)

	_, err = f.ctrl.CurrentVersion(ctx, f.sess)
	require.ErrorIs(t, err, version.ErrNoCurrentVersion)
}
