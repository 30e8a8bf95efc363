package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rpggio/gridlayout/internal/repository"
)

// Effective computes the rights p holds on res given the region's ACL.
// Owners hold everything and other tenants hold nothing. Matching entries
// are OR-reduced and edit or share implies read; with no match, read falls
// back to defaultRead and the other rights are denied. A matching entry
// granting nothing revokes read.
func Effective(res Resource, entries []Entry, p Principal, defaultRead bool) Set {
	if p.TenantID != res.TenantID {
		return Set{}
	}
	if p.UserID != "" && p.UserID == res.OwnerID {
		return All
	}

	var (
		set     Set
		matched bool
	)
	for _, e := range entries {
		if e.RegionID != res.ID || !p.Matches(e) {
			continue
		}
		matched = true
		set = set.Union(e.Permissions)
	}
	if !matched {
		set.Read = defaultRead
	}
	if set.Edit || set.Share {
		set.Read = true
	}
	return set
}

// Resolver answers permission checks, loading ACLs lazily and caching
// results per (region, principal) until the region's ACL changes.
type Resolver struct {
	repo        Repository
	logger      *slog.Logger
	defaultRead bool

	mu      sync.Mutex
	entries map[string][]Entry
	cache   map[string]Set
	gens    map[string]uint64
	group   singleflight.Group
}

// NewResolver creates a resolver. A nil repo means no ACL entries exist.
func NewResolver(repo Repository, logger *slog.Logger, defaultRead bool) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		repo:        repo,
		logger:      logger,
		defaultRead: defaultRead,
		entries:     make(map[string][]Entry),
		cache:       make(map[string]Set),
		gens:        make(map[string]uint64),
	}
}

// Resolve returns the effective rights of p on res.
func (r *Resolver) Resolve(ctx context.Context, res Resource, p Principal) (Set, error) {
	key := cacheKey(res, p)

	r.mu.Lock()
	if set, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return set, nil
	}
	gen := r.gens[res.ID]
	r.mu.Unlock()

	entries, err := r.load(ctx, res.TenantID, res.ID)
	if err != nil {
		return Set{}, err
	}
	set := Effective(res, entries, p, r.defaultRead)

	r.mu.Lock()
	if r.gens[res.ID] == gen {
		r.cache[key] = set
	}
	r.mu.Unlock()
	return set, nil
}

// Check reports whether p holds kind on res.
func (r *Resolver) Check(ctx context.Context, res Resource, p Principal, kind Kind) (bool, error) {
	set, err := r.Resolve(ctx, res, p)
	if err != nil {
		return false, err
	}
	return set.Has(kind), nil
}

// Require returns a *PermissionError when p lacks kind on res.
func (r *Resolver) Require(ctx context.Context, res Resource, p Principal, kind Kind) error {
	ok, err := r.Check(ctx, res, p, kind)
	if err != nil {
		return err
	}
	if !ok {
		return &PermissionError{Kind: kind, RegionID: res.ID, PrincipalID: p.UserID}
	}
	return nil
}

// List returns the ACL entries of a region.
func (r *Resolver) List(ctx context.Context, tenantID, regionID string) ([]Entry, error) {
	entries, err := r.load(ctx, tenantID, regionID)
	if err != nil {
		return nil, err
	}
	return append([]Entry(nil), entries...), nil
}

// SetACL creates or replaces the grant for the entry's principal.
func (r *Resolver) SetACL(ctx context.Context, tenantID string, entry Entry) (*Entry, error) {
	if r.repo == nil {
		return nil, fmt.Errorf("setting acl: %w", repository.ErrInvalidInput)
	}
	if strings.TrimSpace(entry.RegionID) == "" || strings.TrimSpace(entry.PrincipalID) == "" || !entry.PrincipalType.Valid() {
		return nil, ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.TenantID = tenantID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := r.repo.Upsert(ctx, tenantID, &entry); err != nil {
		return nil, fmt.Errorf("setting acl: %w", err)
	}
	r.Invalidate(entry.RegionID)

	r.logger.Info("acl set",
		"region_id", entry.RegionID,
		"principal_type", entry.PrincipalType,
		"principal_id", entry.PrincipalID,
	)
	return &entry, nil
}

// RemoveACL deletes an entry from a region's ACL.
func (r *Resolver) RemoveACL(ctx context.Context, tenantID, regionID, entryID string) error {
	if r.repo == nil {
		return ErrEntryNotFound
	}
	if err := r.repo.Delete(ctx, tenantID, regionID, entryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("removing acl: %w", err)
	}
	r.Invalidate(regionID)

	r.logger.Info("acl removed", "region_id", regionID, "entry_id", entryID)
	return nil
}

// Invalidate drops cached entries and results for a region.
func (r *Resolver) Invalidate(regionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gens[regionID]++
	delete(r.entries, regionID)
	prefix := regionID + "|"
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
}

func (r *Resolver) load(ctx context.Context, tenantID, regionID string) ([]Entry, error) {
	r.mu.Lock()
	if entries, ok := r.entries[regionID]; ok {
		r.mu.Unlock()
		return entries, nil
	}
	gen := r.gens[regionID]
	r.mu.Unlock()

	if r.repo == nil {
		return nil, nil
	}

	v, err, _ := r.group.Do(tenantID+"|"+regionID, func() (any, error) {
		entries, err := r.repo.ListByRegion(ctx, tenantID, regionID)
		if err != nil {
			return nil, fmt.Errorf("loading acl: %w", err)
		}
		r.mu.Lock()
		if r.gens[regionID] == gen {
			r.entries[regionID] = entries
		}
		r.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func cacheKey(res Resource, p Principal) string {
	return res.ID + "|" + res.OwnerID + "|" + p.Key()
}
