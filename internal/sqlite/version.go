package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/repository"
)

// VersionRepository implements version.Repository for SQLite
type VersionRepository struct {
	db *DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create stores a version with the next number for its layout.
func (r *VersionRepository) Create(ctx context.Context, tenantID string, v *version.Version) error {
	regions := v.Regions
	if regions == nil {
		regions = []region.Region{}
	}
	snapshot, err := json.Marshal(regions)
	if err != nil {
		return fmt.Errorf("failed to encode regions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var number int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE layout_id = ?`,
		v.LayoutID).Scan(&number); err != nil {
		return fmt.Errorf("failed to number version: %w", err)
	}

	query := `
		INSERT INTO versions (
			id, tenant_id, layout_id, version_number, status, notes,
			regions, created_by, reverted_from, created_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		v.ID,
		tenantID,
		v.LayoutID,
		number,
		v.Status,
		v.Notes,
		string(snapshot),
		v.CreatedBy,
		v.RevertedFrom,
		v.CreatedAt,
		v.PublishedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	v.TenantID = tenantID
	v.Number = number
	return nil
}

const versionColumns = `
	id, tenant_id, layout_id, version_number, status, notes,
	regions, created_by, reverted_from, created_at, published_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*version.Version, error) {
	var (
		v            version.Version
		snapshot     string
		revertedFrom sql.NullString
		publishedAt  sql.NullTime
	)
	if err := row.Scan(
		&v.ID,
		&v.TenantID,
		&v.LayoutID,
		&v.Number,
		&v.Status,
		&v.Notes,
		&snapshot,
		&v.CreatedBy,
		&revertedFrom,
		&v.CreatedAt,
		&publishedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &v.Regions); err != nil {
		return nil, fmt.Errorf("failed to decode regions of version %s: %w", v.ID, err)
	}
	if revertedFrom.Valid {
		v.RevertedFrom = &revertedFrom.String
	}
	if publishedAt.Valid {
		v.PublishedAt = &publishedAt.Time
	}
	return &v, nil
}

// Get retrieves a version by ID
func (r *VersionRepository) Get(ctx context.Context, tenantID, id string) (*version.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE id = ? AND tenant_id = ?`
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// List returns a layout's versions, newest first.
func (r *VersionRepository) List(ctx context.Context, tenantID, layoutID string) ([]version.Version, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM versions
		WHERE tenant_id = ? AND layout_id = ?
		ORDER BY version_number DESC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, layoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []version.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return versions, nil
}

// UpdateStatus moves a version from one status to another.
func (r *VersionRepository) UpdateStatus(ctx context.Context, tenantID, id string, from, to version.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE versions SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		to, id, tenantID, from)
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	return r.checkAffected(ctx, result, tenantID, id)
}

// Publish archives the layout's published version, publishes id and points
// the layout at it.
func (r *VersionRepository) Publish(ctx context.Context, tenantID, id, notes string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var layoutID string
	err = tx.QueryRowContext(ctx,
		`SELECT layout_id FROM versions WHERE id = ? AND tenant_id = ?`, id, tenantID).Scan(&layoutID)
	if err == sql.ErrNoRows {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE versions SET status = 'ARCHIVED' WHERE layout_id = ? AND status = 'PUBLISHED' AND id != ?`,
		layoutID, id); err != nil {
		return fmt.Errorf("failed to archive published version: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE versions
		SET status = 'PUBLISHED', published_at = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END
		WHERE id = ? AND status IN ('DRAFT', 'PREVIEW')
	`, at, notes, notes, id)
	if err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE layouts SET current_version_id = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		id, at, layoutID, tenantID); err != nil {
		return fmt.Errorf("failed to point layout at version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CurrentID returns the version a layout currently points at.
func (r *VersionRepository) CurrentID(ctx context.Context, tenantID, layoutID string) (string, error) {
	var current sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT current_version_id FROM layouts WHERE id = ? AND tenant_id = ?`,
		layoutID, tenantID).Scan(&current)
	if err == sql.ErrNoRows || (err == nil && !current.Valid) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get current version: %w", err)
	}
	return current.String, nil
}

func (r *VersionRepository) checkAffected(ctx context.Context, result sql.Result, tenantID, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM versions WHERE id = ? AND tenant_id = ?`, id, tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check version: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}
