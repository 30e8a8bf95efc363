package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to a private in-memory database sees its own copy.
	if dataSourceName == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. It is idempotent.
func (db *DB) RunMigrations() error {
	migration := `
-- Layouts: one named dashboard per user
CREATE TABLE IF NOT EXISTS layouts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT '',
    is_default INTEGER NOT NULL DEFAULT 0,
    current_version_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenant_layouts ON layouts(tenant_id, user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_default_layout ON layouts(tenant_id, user_id) WHERE is_default = 1;

-- Regions: the working set of each layout; deleted rows are kept
CREATE TABLE IF NOT EXISTS regions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    layout_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    region_type TEXT NOT NULL,
    grid_row INTEGER NOT NULL CHECK(grid_row >= 0),
    grid_col INTEGER NOT NULL CHECK(grid_col BETWEEN 0 AND 11),
    row_span INTEGER NOT NULL CHECK(row_span BETWEEN 1 AND 20),
    col_span INTEGER NOT NULL CHECK(col_span BETWEEN 1 AND 12),
    min_width INTEGER NOT NULL,
    min_height INTEGER NOT NULL,
    is_collapsed INTEGER NOT NULL DEFAULT 0,
    is_locked INTEGER NOT NULL DEFAULT 0,
    is_hidden_on_mobile INTEGER NOT NULL DEFAULT 0,
    config TEXT,
    widget_config TEXT,
    display_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP,
    PRIMARY KEY (layout_id, id),
    FOREIGN KEY (layout_id) REFERENCES layouts(id)
);
CREATE INDEX IF NOT EXISTS idx_tenant_regions ON regions(tenant_id);

-- Versions: immutable region snapshots with a lifecycle status
CREATE TABLE IF NOT EXISTS versions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    layout_id TEXT NOT NULL,
    version_number INTEGER NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('DRAFT', 'PREVIEW', 'PUBLISHED', 'ARCHIVED')),
    notes TEXT NOT NULL DEFAULT '',
    regions TEXT NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    reverted_from TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    published_at TIMESTAMP,
    UNIQUE (layout_id, version_number),
    FOREIGN KEY (layout_id) REFERENCES layouts(id),
    FOREIGN KEY (reverted_from) REFERENCES versions(id)
);
CREATE INDEX IF NOT EXISTS idx_tenant_versions ON versions(tenant_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_one_published ON versions(layout_id) WHERE status = 'PUBLISHED';

-- Region ACL; region_id may also be a layout id for layout-wide grants
CREATE TABLE IF NOT EXISTS region_acl (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    region_id TEXT NOT NULL,
    principal_type TEXT NOT NULL CHECK(principal_type IN ('user', 'role', 'team')),
    principal_id TEXT NOT NULL,
    can_read INTEGER NOT NULL DEFAULT 0,
    can_edit INTEGER NOT NULL DEFAULT 0,
    can_share INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (tenant_id, region_id, principal_type, principal_id)
);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    layout_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    region_id TEXT,
    version_id TEXT,
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tenant_activity ON activity_log(tenant_id);
CREATE INDEX IF NOT EXISTS idx_layout_activity ON activity_log(layout_id);
CREATE INDEX IF NOT EXISTS idx_created_at ON activity_log(created_at);

-- API keys for authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    roles TEXT NOT NULL DEFAULT '',
    teams TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used TIMESTAMP,
    description TEXT
);
CREATE INDEX IF NOT EXISTS idx_tenant_keys ON api_keys(tenant_id);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
