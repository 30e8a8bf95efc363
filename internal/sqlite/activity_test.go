package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	entry1 := &activity.ActivityEntry{
		LayoutID:     "l1",
		UserID:       "u1",
		ActivityType: activity.TypeRegionAdded,
		Summary:      "added analytics",
		Details:      `{"id":"r1"}`,
	}
	entry2 := &activity.ActivityEntry{
		LayoutID:     "l1",
		UserID:       "u1",
		ActivityType: activity.TypeRegionMoved,
		Summary:      "moved analytics",
	}

	require.NoError(t, repo.Log(ctx, "tenant1", entry1))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Log(ctx, "tenant1", entry2))
	require.NotZero(t, entry1.ID)

	entries, err := repo.List(ctx, "tenant1", activity.ListActivityOptions{LayoutID: "l1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ActivityType, entries[0].ActivityType)
	require.Equal(t, entry1.ActivityType, entries[1].ActivityType)

	entries, err = repo.List(ctx, "tenant1", activity.ListActivityOptions{LayoutID: "l1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entry1.ActivityType, entries[0].ActivityType)
}

func TestActivityRepository_FiltersAndTenantIsolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	regionID := "r1"
	versionID := "v1"
	entry := &activity.ActivityEntry{
		LayoutID:     "l1",
		RegionID:     &regionID,
		VersionID:    &versionID,
		ActivityType: activity.TypeConflictDetected,
		Summary:      "conflict on r1",
		Details:      "{}",
	}
	require.NoError(t, repo.Log(ctx, "tenant1", entry))
	require.NoError(t, repo.Log(ctx, "tenant1", &activity.ActivityEntry{
		LayoutID: "l1", ActivityType: activity.TypeRegionAdded, Summary: "added",
	}))

	activityType := activity.TypeConflictDetected
	opts := activity.ListActivityOptions{
		LayoutID:     "l1",
		RegionID:     &regionID,
		VersionID:    &versionID,
		ActivityType: &activityType,
	}
	entries, err := repo.List(ctx, "tenant1", opts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "r1", *entries[0].RegionID)

	entries, err = repo.List(ctx, "tenant2", activity.ListActivityOptions{LayoutID: "l1"})
	require.NoError(t, err)
	require.Len(t, entries, 0)
}
