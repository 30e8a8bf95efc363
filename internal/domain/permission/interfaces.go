package permission

import "context"

// Repository provides persistence for region ACL entries.
type Repository interface {
	ListByRegion(ctx context.Context, tenantID, regionID string) ([]Entry, error)
	Upsert(ctx context.Context, tenantID string, entry *Entry) error
	Delete(ctx context.Context, tenantID, regionID, entryID string) error
}
