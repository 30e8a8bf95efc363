package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/repository"
)

// RegionRepository implements layout.RegionRepository for SQLite
type RegionRepository struct {
	db *DB
}

// NewRegionRepository creates a new RegionRepository
func NewRegionRepository(db *DB) *RegionRepository {
	return &RegionRepository{db: db}
}

// ListByLayout returns a layout's regions in display order.
func (r *RegionRepository) ListByLayout(ctx context.Context, tenantID, layoutID string, includeDeleted bool) ([]region.Region, error) {
	query := `
		SELECT
			id, tenant_id, layout_id, user_id, region_type,
			grid_row, grid_col, row_span, col_span, min_width, min_height,
			is_collapsed, is_locked, is_hidden_on_mobile, config, widget_config,
			display_order, created_at, updated_at, deleted_at
		FROM regions
		WHERE tenant_id = ? AND layout_id = ?
	`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY display_order ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, tenantID, layoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	var regions []region.Region
	for rows.Next() {
		var (
			reg          region.Region
			config       sql.NullString
			widgetConfig sql.NullString
			deletedAt    sql.NullTime
		)
		if err := rows.Scan(
			&reg.ID,
			&reg.TenantID,
			&reg.LayoutID,
			&reg.UserID,
			&reg.Type,
			&reg.GridRow,
			&reg.GridCol,
			&reg.RowSpan,
			&reg.ColSpan,
			&reg.MinWidth,
			&reg.MinHeight,
			&reg.IsCollapsed,
			&reg.IsLocked,
			&reg.IsHiddenOnMobile,
			&config,
			&widgetConfig,
			&reg.DisplayOrder,
			&reg.CreatedAt,
			&reg.UpdatedAt,
			&deletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		if config.Valid {
			reg.Config = json.RawMessage(config.String)
		}
		if widgetConfig.Valid {
			reg.WidgetConfig = json.RawMessage(widgetConfig.String)
		}
		if deletedAt.Valid {
			reg.DeletedAt = &deletedAt.Time
		}
		regions = append(regions, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating region rows: %w", err)
	}

	return regions, nil
}

// ReplaceAll upserts every region and soft-deletes stored live regions
// missing from the set, in one transaction.
func (r *RegionRepository) ReplaceAll(ctx context.Context, tenantID, layoutID string, regions []region.Region) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO regions (
			id, tenant_id, layout_id, user_id, region_type,
			grid_row, grid_col, row_span, col_span, min_width, min_height,
			is_collapsed, is_locked, is_hidden_on_mobile, config, widget_config,
			display_order, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (layout_id, id) DO UPDATE SET
			user_id = excluded.user_id,
			region_type = excluded.region_type,
			grid_row = excluded.grid_row,
			grid_col = excluded.grid_col,
			row_span = excluded.row_span,
			col_span = excluded.col_span,
			min_width = excluded.min_width,
			min_height = excluded.min_height,
			is_collapsed = excluded.is_collapsed,
			is_locked = excluded.is_locked,
			is_hidden_on_mobile = excluded.is_hidden_on_mobile,
			config = excluded.config,
			widget_config = excluded.widget_config,
			display_order = excluded.display_order,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
		WHERE regions.tenant_id = excluded.tenant_id
	`
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("failed to prepare region upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	keep := make(map[string]bool, len(regions))
	for _, reg := range regions {
		keep[reg.ID] = true
		createdAt := reg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		updatedAt := reg.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			reg.ID,
			tenantID,
			layoutID,
			reg.UserID,
			reg.Type,
			reg.GridRow,
			reg.GridCol,
			reg.RowSpan,
			reg.ColSpan,
			reg.MinWidth,
			reg.MinHeight,
			reg.IsCollapsed,
			reg.IsLocked,
			reg.IsHiddenOnMobile,
			nullableJSON(reg.Config),
			nullableJSON(reg.WidgetConfig),
			reg.DisplayOrder,
			createdAt,
			updatedAt,
			reg.DeletedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to save region %s: %w", reg.ID, err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM regions WHERE tenant_id = ? AND layout_id = ? AND deleted_at IS NULL`,
		tenantID, layoutID)
	if err != nil {
		return fmt.Errorf("failed to list stored regions: %w", err)
	}
	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan region id: %w", err)
		}
		if !keep[id] {
			missing = append(missing, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating region rows: %w", err)
	}

	for _, id := range missing {
		if _, err := tx.ExecContext(ctx,
			`UPDATE regions SET deleted_at = ?, updated_at = ? WHERE layout_id = ? AND id = ?`,
			now, now, layoutID, id); err != nil {
			return fmt.Errorf("failed to delete region %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE layouts SET updated_at = ? WHERE id = ? AND tenant_id = ?`, now, layoutID, tenantID); err != nil {
		return fmt.Errorf("failed to touch layout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
