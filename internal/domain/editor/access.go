package editor

import (
	"context"
	"fmt"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/permission"
)

// Permissions returns the principal's effective rights on a region, or on
// the layout itself when targetID is the layout ID.
func (c *Controller) Permissions(ctx context.Context, sess *Session, targetID string) (permission.Set, error) {
	res, err := c.resource(sess, targetID)
	if err != nil {
		return permission.Set{}, err
	}
	if c.perms == nil {
		return permission.All, nil
	}
	return c.perms.Resolve(ctx, res, sess.Principal)
}

// ACL lists the grants on a region or the layout. Reading an ACL takes
// the share right.
func (c *Controller) ACL(ctx context.Context, sess *Session, targetID string) ([]permission.Entry, error) {
	if c.perms == nil {
		return nil, ErrNoAccessControl
	}
	res, err := c.resource(sess, targetID)
	if err != nil {
		return nil, err
	}
	if err := c.perms.Require(ctx, res, sess.Principal, permission.KindShare); err != nil {
		return nil, err
	}
	return c.perms.List(ctx, sess.TenantID, res.ID)
}

// SetACL grants rights on a region or the layout. Granting takes the
// share right on the target.
func (c *Controller) SetACL(ctx context.Context, sess *Session, entry permission.Entry) (*permission.Entry, error) {
	if c.perms == nil {
		return nil, ErrNoAccessControl
	}
	res, err := c.resource(sess, entry.RegionID)
	if err != nil {
		return nil, err
	}
	if err := c.perms.Require(ctx, res, sess.Principal, permission.KindShare); err != nil {
		return nil, err
	}

	entry.RegionID = res.ID
	saved, err := c.perms.SetACL(ctx, sess.TenantID, entry)
	if err != nil {
		return nil, err
	}
	c.logActivity(ctx, sess, activity.TypeACLChanged, &saved.RegionID,
		fmt.Sprintf("granted %s:%s read=%t edit=%t share=%t", saved.PrincipalType, saved.PrincipalID,
			saved.Permissions.Read, saved.Permissions.Edit, saved.Permissions.Share))
	return saved, nil
}

// RemoveACL revokes one grant.
func (c *Controller) RemoveACL(ctx context.Context, sess *Session, targetID, entryID string) error {
	if c.perms == nil {
		return ErrNoAccessControl
	}
	res, err := c.resource(sess, targetID)
	if err != nil {
		return err
	}
	if err := c.perms.Require(ctx, res, sess.Principal, permission.KindShare); err != nil {
		return err
	}
	if err := c.perms.RemoveACL(ctx, sess.TenantID, res.ID, entryID); err != nil {
		return err
	}
	c.logActivity(ctx, sess, activity.TypeACLChanged, &res.ID, "revoked grant "+entryID)
	return nil
}

func (c *Controller) resource(sess *Session, targetID string) (permission.Resource, error) {
	if targetID == "" || targetID == sess.LayoutID {
		return permission.Resource{ID: sess.LayoutID, TenantID: sess.TenantID, OwnerID: sess.OwnerID}, nil
	}
	r, err := sess.store.Get(targetID)
	if err != nil {
		return permission.Resource{}, err
	}
	owner := r.UserID
	if owner == "" {
		owner = sess.OwnerID
	}
	return permission.Resource{ID: r.ID, TenantID: sess.TenantID, OwnerID: owner}, nil
}
