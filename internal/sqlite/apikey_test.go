package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository_Resolve(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	p := permission.Principal{TenantID: "tenant1", UserID: "u1", Roles: []string{"dispatcher", "manager"}}
	require.NoError(t, repo.Add(ctx, "secret", p, "laptop"))
	require.ErrorIs(t, repo.Add(ctx, "secret", p, "again"), repository.ErrConflict)

	got, err := repo.ResolvePrincipal(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, p.TenantID, got.TenantID)
	require.Equal(t, p.Roles, got.Roles)
	require.Nil(t, got.Teams)

	_, err = repo.ResolvePrincipal(ctx, "wrong")
	require.ErrorIs(t, err, repository.ErrNotFound)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT key_hash FROM api_keys`).Scan(&stored))
	require.NotEqual(t, "secret", stored)
	require.Equal(t, HashToken("secret"), stored)
}
