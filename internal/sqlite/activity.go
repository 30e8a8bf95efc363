package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts a new activity entry
func (r *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO activity_log (
			tenant_id, layout_id, user_id, region_id, version_id,
			activity_type, summary, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tenantID,
		entry.LayoutID,
		entry.UserID,
		entry.RegionID,
		entry.VersionID,
		entry.ActivityType,
		entry.Summary,
		entry.Details,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}

	entry.TenantID = tenantID
	entry.CreatedAt = createdAt

	return nil
}

// List returns activity entries matching the given filters
func (r *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `
		SELECT
			id, tenant_id, layout_id, user_id, region_id, version_id,
			activity_type, summary, details, created_at
		FROM activity_log
		WHERE tenant_id = ?
	`

	args := []interface{}{tenantID}
	conditions := []string{}

	if opts.LayoutID != "" {
		conditions = append(conditions, "layout_id = ?")
		args = append(args, opts.LayoutID)
	}
	if opts.RegionID != nil {
		conditions = append(conditions, "region_id = ?")
		args = append(args, *opts.RegionID)
	}
	if opts.VersionID != nil {
		conditions = append(conditions, "version_id = ?")
		args = append(args, *opts.VersionID)
	}
	if opts.ActivityType != nil {
		conditions = append(conditions, "activity_type = ?")
		args = append(args, *opts.ActivityType)
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.ActivityEntry
	for rows.Next() {
		var entry activity.ActivityEntry
		var regionID sql.NullString
		var versionID sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.LayoutID,
			&entry.UserID,
			&regionID,
			&versionID,
			&entry.ActivityType,
			&entry.Summary,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if regionID.Valid {
			entry.RegionID = &regionID.String
		}
		if versionID.Valid {
			entry.VersionID = &versionID.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}
