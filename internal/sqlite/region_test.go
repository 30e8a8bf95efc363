package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/repository"
	"github.com/stretchr/testify/require"
)

func testRegion(id string, row, col int) region.Region {
	return region.Region{
		ID:        id,
		UserID:    "u1",
		Type:      region.TypeAnalytics,
		GridRow:   row,
		GridCol:   col,
		RowSpan:   2,
		ColSpan:   6,
		MinWidth:  region.MinPixels,
		MinHeight: region.MinPixels,
	}
}

func TestRegionRepository_ReplaceAllRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	insertLayout(t, db, "l1", "tenant1", "u1")
	repo := NewRegionRepository(db)
	ctx := context.Background()

	a := testRegion("a", 0, 0)
	a.Config = json.RawMessage(`{"range":"7d"}`)
	a.IsLocked = true
	b := testRegion("b", 0, 6)
	b.DisplayOrder = 1

	require.NoError(t, repo.ReplaceAll(ctx, "tenant1", "l1", []region.Region{b, a}))

	got, err := repo.ListByLayout(ctx, "tenant1", "l1", false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
	require.JSONEq(t, `{"range":"7d"}`, string(got[0].Config))
	require.True(t, got[0].IsLocked)
	require.Nil(t, got[1].Config)
	require.Equal(t, "l1", got[1].LayoutID)
	require.Equal(t, "tenant1", got[1].TenantID)
}

func TestRegionRepository_ReplaceAllSoftDeletesMissing(t *testing.T) {
	db := NewTestDB(t)
	insertLayout(t, db, "l1", "tenant1", "u1")
	repo := NewRegionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, "tenant1", "l1", []region.Region{testRegion("a", 0, 0), testRegion("b", 0, 6)}))

	moved := testRegion("a", 3, 0)
	require.NoError(t, repo.ReplaceAll(ctx, "tenant1", "l1", []region.Region{moved}))

	live, err := repo.ListByLayout(ctx, "tenant1", "l1", false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, 3, live[0].GridRow)

	all, err := repo.ListByLayout(ctx, "tenant1", "l1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[1].Deleted())

	// a deleted region comes back when it reappears in the set
	require.NoError(t, repo.ReplaceAll(ctx, "tenant1", "l1", []region.Region{moved, testRegion("b", 5, 0)}))
	live, err = repo.ListByLayout(ctx, "tenant1", "l1", false)
	require.NoError(t, err)
	require.Len(t, live, 2)
}

func TestRegionRepository_UnknownLayout(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRegionRepository(db)

	err := repo.ReplaceAll(context.Background(), "tenant1", "missing", []region.Region{testRegion("a", 0, 0)})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}
