package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/repository"
)

// ACLRepository implements permission.Repository for SQLite
type ACLRepository struct {
	db *DB
}

// NewACLRepository creates a new ACLRepository
func NewACLRepository(db *DB) *ACLRepository {
	return &ACLRepository{db: db}
}

// ListByRegion returns the ACL entries of a region.
func (r *ACLRepository) ListByRegion(ctx context.Context, tenantID, regionID string) ([]permission.Entry, error) {
	query := `
		SELECT id, tenant_id, region_id, principal_type, principal_id, can_read, can_edit, can_share, created_at
		FROM region_acl
		WHERE tenant_id = ? AND region_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acl: %w", err)
	}
	defer rows.Close()

	entries := []permission.Entry{}
	for rows.Next() {
		var e permission.Entry
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.RegionID,
			&e.PrincipalType,
			&e.PrincipalID,
			&e.Permissions.Read,
			&e.Permissions.Edit,
			&e.Permissions.Share,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan acl entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating acl rows: %w", err)
	}
	return entries, nil
}

// Upsert stores an entry, replacing the rights of an existing entry for the
// same region and principal. entry.ID is set to the stored row's ID.
func (r *ACLRepository) Upsert(ctx context.Context, tenantID string, entry *permission.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO region_acl (id, tenant_id, region_id, principal_type, principal_id, can_read, can_edit, can_share, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, region_id, principal_type, principal_id) DO UPDATE SET
			can_read = excluded.can_read,
			can_edit = excluded.can_edit,
			can_share = excluded.can_share
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID,
		tenantID,
		entry.RegionID,
		entry.PrincipalType,
		entry.PrincipalID,
		entry.Permissions.Read,
		entry.Permissions.Edit,
		entry.Permissions.Share,
		createdAt,
	); err != nil {
		return fmt.Errorf("failed to upsert acl entry: %w", err)
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM region_acl
		WHERE tenant_id = ? AND region_id = ? AND principal_type = ? AND principal_id = ?
	`, tenantID, entry.RegionID, entry.PrincipalType, entry.PrincipalID).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read back acl entry: %w", err)
	}

	entry.TenantID = tenantID
	return nil
}

// Delete removes one entry.
func (r *ACLRepository) Delete(ctx context.Context, tenantID, regionID, entryID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM region_acl WHERE id = ? AND tenant_id = ? AND region_id = ?`,
		entryID, tenantID, regionID)
	if err != nil {
		return fmt.Errorf("failed to delete acl entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
