package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens and the principal each one
// authenticates as.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add registers token for p.
func (r *APIKeyRepository) Add(ctx context.Context, token string, p permission.Principal, description string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, tenant_id, user_id, roles, teams, created_at, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, HashToken(token), p.TenantID, p.UserID, strings.Join(p.Roles, ","), strings.Join(p.Teams, ","), time.Now(), description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// ResolvePrincipal returns the principal token authenticates as and stamps
// the key's last use.
func (r *APIKeyRepository) ResolvePrincipal(ctx context.Context, token string) (permission.Principal, error) {
	hash := HashToken(token)

	var (
		p            permission.Principal
		roles, teams string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, user_id, roles, teams FROM api_keys WHERE key_hash = ?`, hash,
	).Scan(&p.TenantID, &p.UserID, &roles, &teams)
	if err == sql.ErrNoRows {
		return permission.Principal{}, repository.ErrNotFound
	}
	if err != nil {
		return permission.Principal{}, fmt.Errorf("failed to resolve api key: %w", err)
	}
	p.Roles = splitList(roles)
	p.Teams = splitList(teams)

	_, _ = r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash)
	return p, nil
}

// HashToken returns the stored form of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
