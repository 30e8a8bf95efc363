package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/repository"
)

// LayoutRepository implements layout.Repository for SQLite
type LayoutRepository struct {
	db *DB
}

// NewLayoutRepository creates a new LayoutRepository
func NewLayoutRepository(db *DB) *LayoutRepository {
	return &LayoutRepository{db: db}
}

// Create creates a new layout
func (r *LayoutRepository) Create(ctx context.Context, tenantID string, l *layout.Layout) error {
	query := `
		INSERT INTO layouts (id, tenant_id, user_id, name, role, is_default, current_version_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		l.ID,
		tenantID,
		l.UserID,
		l.Name,
		l.Role,
		l.IsDefault,
		l.CurrentVersionID,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create layout: %w", err)
	}

	l.TenantID = tenantID
	return nil
}

// Delete removes a layout that has no regions or versions.
func (r *LayoutRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM layouts WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const layoutColumns = `id, tenant_id, user_id, name, role, is_default, current_version_id, created_at, updated_at`

// Get retrieves a layout by ID
func (r *LayoutRepository) Get(ctx context.Context, tenantID, id string) (*layout.Layout, error) {
	query := `SELECT ` + layoutColumns + ` FROM layouts WHERE id = ? AND tenant_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, tenantID), "get layout")
}

// GetDefault retrieves a user's default layout
func (r *LayoutRepository) GetDefault(ctx context.Context, tenantID, userID string) (*layout.Layout, error) {
	query := `
		SELECT ` + layoutColumns + `
		FROM layouts
		WHERE tenant_id = ? AND user_id = ? AND is_default = 1
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tenantID, userID), "get default layout")
}

func (r *LayoutRepository) scanOne(row *sql.Row, op string) (*layout.Layout, error) {
	var (
		l       layout.Layout
		current sql.NullString
	)
	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.UserID,
		&l.Name,
		&l.Role,
		&l.IsDefault,
		&current,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	if current.Valid {
		l.CurrentVersionID = &current.String
	}
	return &l, nil
}

// List returns a user's layouts with summary information
func (r *LayoutRepository) List(ctx context.Context, tenantID, userID string) ([]layout.LayoutSummary, error) {
	query := `
		SELECT
			l.id,
			l.name,
			l.is_default,
			l.updated_at,
			(SELECT COUNT(*) FROM regions g WHERE g.layout_id = l.id AND g.deleted_at IS NULL) AS region_count,
			(SELECT COUNT(*) FROM versions v WHERE v.layout_id = l.id) AS versions
		FROM layouts l
		WHERE l.tenant_id = ? AND l.user_id = ?
		ORDER BY l.is_default DESC, l.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list layouts: %w", err)
	}
	defer rows.Close()

	var summaries []layout.LayoutSummary
	for rows.Next() {
		var summary layout.LayoutSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.IsDefault,
			&summary.UpdatedAt,
			&summary.RegionCount,
			&summary.Versions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan layout summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layout rows: %w", err)
	}

	return summaries, nil
}
