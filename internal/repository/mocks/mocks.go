package mocks

import (
	"context"
	"time"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ACLRepository is a mock for permission.Repository.
type ACLRepository struct {
	mock.Mock
}

func (m *ACLRepository) ListByRegion(ctx context.Context, tenantID, regionID string) ([]permission.Entry, error) {
	args := m.Called(ctx, tenantID, regionID)
	if entries, ok := args.Get(0).([]permission.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ACLRepository) Upsert(ctx context.Context, tenantID string, entry *permission.Entry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ACLRepository) Delete(ctx context.Context, tenantID, regionID, entryID string) error {
	args := m.Called(ctx, tenantID, regionID, entryID)
	return args.Error(0)
}

// VersionRepository is a mock for version.Repository.
type VersionRepository struct {
	mock.Mock
}

func (m *VersionRepository) Create(ctx context.Context, tenantID string, v *version.Version) error {
	args := m.Called(ctx, tenantID, v)
	return args.Error(0)
}

func (m *VersionRepository) Get(ctx context.Context, tenantID, id string) (*version.Version, error) {
	args := m.Called(ctx, tenantID, id)
	if v, ok := args.Get(0).(*version.Version); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VersionRepository) List(ctx context.Context, tenantID, layoutID string) ([]version.Version, error) {
	args := m.Called(ctx, tenantID, layoutID)
	if list, ok := args.Get(0).([]version.Version); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VersionRepository) UpdateStatus(ctx context.Context, tenantID, id string, from, to version.Status) error {
	args := m.Called(ctx, tenantID, id, from, to)
	return args.Error(0)
}

func (m *VersionRepository) Publish(ctx context.Context, tenantID, id, notes string, at time.Time) error {
	args := m.Called(ctx, tenantID, id, notes, at)
	return args.Error(0)
}

func (m *VersionRepository) CurrentID(ctx context.Context, tenantID, layoutID string) (string, error) {
	args := m.Called(ctx, tenantID, layoutID)
	return args.String(0), args.Error(1)
}

// LayoutRepository is a mock for layout.Repository.
type LayoutRepository struct {
	mock.Mock
}

func (m *LayoutRepository) Create(ctx context.Context, tenantID string, l *layout.Layout) error {
	args := m.Called(ctx, tenantID, l)
	return args.Error(0)
}

func (m *LayoutRepository) Get(ctx context.Context, tenantID, id string) (*layout.Layout, error) {
	args := m.Called(ctx, tenantID, id)
	if l, ok := args.Get(0).(*layout.Layout); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LayoutRepository) GetDefault(ctx context.Context, tenantID, userID string) (*layout.Layout, error) {
	args := m.Called(ctx, tenantID, userID)
	if l, ok := args.Get(0).(*layout.Layout); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LayoutRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *LayoutRepository) List(ctx context.Context, tenantID, userID string) ([]layout.LayoutSummary, error) {
	args := m.Called(ctx, tenantID, userID)
	if list, ok := args.Get(0).([]layout.LayoutSummary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// RegionRepository is a mock for layout.RegionRepository.
type RegionRepository struct {
	mock.Mock
}

func (m *RegionRepository) ListByLayout(ctx context.Context, tenantID, layoutID string, includeDeleted bool) ([]region.Region, error) {
	args := m.Called(ctx, tenantID, layoutID, includeDeleted)
	if list, ok := args.Get(0).([]region.Region); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RegionRepository) ReplaceAll(ctx context.Context, tenantID, layoutID string, regions []region.Region) error {
	args := m.Called(ctx, tenantID, layoutID, regions)
	return args.Error(0)
}
