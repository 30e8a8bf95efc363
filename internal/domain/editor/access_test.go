package editor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/repository/mocks"
)

func TestAccess_OwnerGrantsAndGuestIsRefused(t *testing.T) {
	acl := new(mocks.ACLRepository)
	acl.On("ListByRegion", mock.Anything, tenantID, mock.Anything).Return([]permission.Entry{}, nil)
	acl.On("Upsert", mock.Anything, tenantID, mock.AnythingOfType("*permission.Entry")).Return(nil)

	storage := newMemStorage(rect("a", region.TypeAnalytics, 0, 0, 2, 6))
	ctrl := editor.NewController(storage, nil, permission.NewResolver(acl, nil, true), nil, nil, nil, inline())
	ctx := context.Background()

	sess, err := ctrl.Open(ctx, editor.OpenRequest{TenantID: tenantID, LayoutID: layoutID, Principal: owner()})
	require.NoError(t, err)
	defer ctrl.Close(ctx, sess)

	set, err := ctrl.Permissions(ctx, sess, "a")
	require.NoError(t, err)
	require.Equal(t, permission.All, set)

	entry, err := ctrl.SetACL(ctx, sess, permission.Entry{
		RegionID:      "a",
		PrincipalType: permission.PrincipalTeam,
		PrincipalID:   "ops",
		Permissions:   permission.Set{Read: true, Edit: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, tenantID, entry.TenantID)

	// An empty target grants on the layout.
	layoutEntry, err := ctrl.SetACL(ctx, sess, permission.Entry{
		PrincipalType: permission.PrincipalRole,
		PrincipalID:   "viewer",
		Permissions:   permission.Set{Read: true},
	})
	require.NoError(t, err)
	require.Equal(t, layoutID, layoutEntry.RegionID)

	guest := permission.Principal{TenantID: tenantID, UserID: "guest"}
	guestSess, err := ctrl.Open(ctx, editor.OpenRequest{TenantID: tenantID, LayoutID: layoutID, Principal: guest})
	require.NoError(t, err)
	defer ctrl.Close(ctx, guestSess)

	set, err = ctrl.Permissions(ctx, guestSess, "a")
	require.NoError(t, err)
	require.Equal(t, permission.Set{Read: true}, set)

	_, err = ctrl.SetACL(ctx, guestSess, permission.Entry{RegionID: "a", PrincipalType: permission.PrincipalUser, PrincipalID: "guest", Permissions: permission.All})
	require.ErrorIs(t, err, permission.ErrPermissionDenied)

	_, err = ctrl.Permissions(ctx, sess, "missing")
	require.ErrorIs(t, err, region.ErrRegionNotFound)
}

func TestAccess_WithoutResolver(t *testing.T) {
	f := newFixture(t, inline(), rect("a", region.TypeAnalytics, 0, 0, 2, 6))
	ctx := context.Background()

	set, err := f.ctrl.Permissions(ctx, f.sess, "a")
	require.NoError(t, err)
	require.Equal(t, permission.All, set)

	_, err = f.ctrl.SetACL(ctx, f.sess, permission.Entry{RegionID: "a"})
	require.ErrorIs(t, err, editor.ErrNoAccessControl)
}
