package editor

import (
	"context"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/version"
)

// SaveDraft snapshots the live regions as a new draft version.
func (c *Controller) SaveDraft(ctx context.Context, sess *Session, notes string) (*version.Version, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := c.versionGuard(ctx, sess, permission.KindEdit); err != nil {
		return nil, err
	}
	sess.history.Flush()

	v, err := c.versions.CreateDraft(ctx, sess.TenantID, version.DraftRequest{
		LayoutID:  sess.LayoutID,
		CreatedBy: sess.Principal.UserID,
		Notes:     notes,
		Regions:   sess.store.All(),
	})
	if err != nil {
		return nil, err
	}
	sess.setVersion(v.ID)
	return v, nil
}

// Preview moves a draft of this layout into preview.
func (c *Controller) Preview(ctx context.Context, sess *Session, versionID string) (*version.Version, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := c.versionGuard(ctx, sess, permission.KindEdit); err != nil {
		return nil, err
	}
	if _, err := c.ownVersion(ctx, sess, versionID); err != nil {
		return nil, err
	}
	return c.versions.Preview(ctx, sess.TenantID, versionID)
}

// Publish makes a version of this layout the published one.
func (c *Controller) Publish(ctx context.Context, sess *Session, versionID, notes string) (*version.Version, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := c.versionGuard(ctx, sess, permission.KindShare); err != nil {
		return nil, err
	}
	if _, err := c.ownVersion(ctx, sess, versionID); err != nil {
		return nil, err
	}
	return c.versions.Publish(ctx, sess.TenantID, versionID, notes)
}

// Revert creates a new draft from an earlier version and loads it into the
// session. The earlier version is left as it was.
func (c *Controller) Revert(ctx context.Context, sess *Session, versionID string) (*version.Version, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := c.versionGuard(ctx, sess, permission.KindEdit); err != nil {
		return nil, err
	}
	if _, err := c.ownVersion(ctx, sess, versionID); err != nil {
		return nil, err
	}

	draft, err := c.versions.Revert(ctx, sess.TenantID, versionID, sess.Principal.UserID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for _, ch := range diff(sess.store.All(), draft.Regions) {
		ids = append(ids, ch.RegionID())
	}
	err = c.commit(ctx, sess, ids, func() ([]collab.Change, error) {
		prev := sess.store.All()
		if err := sess.store.Restore(draft.Regions); err != nil {
			return nil, err
		}
		return diff(prev, sess.store.All()), nil
	})
	if err != nil {
		return nil, err
	}
	sess.setVersion(draft.ID)
	return draft, nil
}

// ListVersions summarizes this layout's versions, newest first.
func (c *Controller) ListVersions(ctx context.Context, sess *Session) ([]version.Summary, error) {
	if err := c.versionGuard(ctx, sess, permission.KindRead); err != nil {
		return nil, err
	}
	return c.versions.ListSummaries(ctx, sess.TenantID, sess.LayoutID)
}

// CurrentVersion returns the published version of this layout.
func (c *Controller) CurrentVersion(ctx context.Context, sess *Session) (*version.Version, error) {
	if err := c.versionGuard(ctx, sess, permission.KindRead); err != nil {
		return nil, err
	}
	return c.versions.Current(ctx, sess.TenantID, sess.LayoutID)
}

func (c *Controller) versionGuard(ctx context.Context, sess *Session, kind permission.Kind) error {
	if c.versions == nil {
		return ErrNoVersioning
	}
	if sess.closed {
		return ErrSessionClosed
	}
	return c.requireLayout(ctx, sess, kind)
}

// ownVersion loads a version and checks it belongs to the session's layout.
func (c *Controller) ownVersion(ctx context.Context, sess *Session, versionID string) (*version.Version, error) {
	v, err := c.versions.Get(ctx, sess.TenantID, versionID)
	if err != nil {
		return nil, err
	}
	if v.LayoutID != sess.LayoutID {
		return nil, version.ErrVersionNotFound
	}
	return v, nil
}
