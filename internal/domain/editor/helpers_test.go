package editor_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/repository"
)

const (
	tenantID = "tenant-1"
	layoutID = "layout-1"
	ownerID  = "user-1"
)

type memStorage struct {
	mu      sync.Mutex
	layouts map[string]*layout.Layout
	regions map[string][]region.Region
	saves   int
	// saveErrs are returned by successive SaveRegions calls.
	saveErrs []error
	block    bool
}

func newMemStorage(regions ...region.Region) *memStorage {
	return &memStorage{
		layouts: map[string]*layout.Layout{
			layoutID: {ID: layoutID, TenantID: tenantID, UserID: ownerID, Name: "My Dashboard", IsDefault: true},
		},
		regions: map[string][]region.Region{layoutID: regions},
	}
}

func (m *memStorage) Get(_ context.Context, _, id string) (*layout.Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layouts[id]
	if !ok {
		return nil, layout.ErrLayoutNotFound
	}
	copied := *l
	return &copied, nil
}

func (m *memStorage) GetOrCreateDefault(ctx context.Context, tenant, userID, _ string) (*layout.Layout, error) {
	m.mu.Lock()
	for _, l := range m.layouts {
		if l.UserID == userID && l.IsDefault {
			m.mu.Unlock()
			return m.Get(ctx, tenant, l.ID)
		}
	}
	l := &layout.Layout{ID: "layout-" + userID, TenantID: tenant, UserID: userID, Name: "My Dashboard", IsDefault: true}
	m.layouts[l.ID] = l
	m.mu.Unlock()
	return m.Get(ctx, tenant, l.ID)
}

func (m *memStorage) LoadRegions(_ context.Context, _, id string) ([]region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []region.Region
	for _, r := range m.regions[id] {
		if !r.Deleted() {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStorage) SaveRegions(ctx context.Context, _, id string, regions []region.Region) error {
	m.mu.Lock()
	block := m.block
	var err error
	if len(m.saveErrs) > 0 {
		err, m.saveErrs = m.saveErrs[0], m.saveErrs[1:]
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.regions[id] = region.CloneAll(regions)
	return nil
}

func (m *memStorage) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStorage) stored(id string) []region.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return region.CloneAll(m.regions[id])
}

// memVersions is an in-memory version.Repository.
type memVersions struct {
	mu       sync.Mutex
	versions map[string]*version.Version
	current  map[string]string
}

func newMemVersions() *memVersions {
	return &memVersions{versions: map[string]*version.Version{}, current: map[string]string{}}
}

func (m *memVersions) Create(_ context.Context, _ string, v *version.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, existing := range m.versions {
		if existing.LayoutID == v.LayoutID && existing.Number > n {
			n = existing.Number
		}
	}
	v.Number = n + 1
	copied := *v
	copied.Regions = region.CloneAll(v.Regions)
	m.versions[v.ID] = &copied
	return nil
}

func (m *memVersions) Get(_ context.Context, _, id string) (*version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *v
	copied.Regions = region.CloneAll(v.Regions)
	return &copied, nil
}

func (m *memVersions) List(_ context.Context, _, id string) ([]version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []version.Version
	for _, v := range m.versions {
		if v.LayoutID == id {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (m *memVersions) UpdateStatus(_ context.Context, _, id string, from, to version.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status != from {
		return repository.ErrConflict
	}
	v.Status = to
	return nil
}

func (m *memVersions) Publish(_ context.Context, _, id, notes string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range m.versions {
		if other.LayoutID == v.LayoutID && other.Status == version.StatusPublished {
			other.Status = version.StatusArchived
		}
	}
	v.Status = version.StatusPublished
	v.PublishedAt = &at
	if notes != "" {
		v.Notes = notes
	}
	m.current[v.LayoutID] = v.ID
	return nil
}

func (m *memVersions) CurrentID(_ context.Context, _, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.current[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return cur, nil
}

// inline runs history snapshots and saves synchronously.
func inline() editor.Options {
	return editor.Options{UndoDebounce: -1, SaveDebounce: -1}
}

func owner() permission.Principal {
	return permission.Principal{TenantID: tenantID, UserID: ownerID}
}

type fixture struct {
	storage  *memStorage
	versions *memVersions
	ctrl     *editor.Controller
	sess     *editor.Session
}

func newFixture(t *testing.T, opts editor.Options, seed ...region.Region) *fixture {
	t.Helper()
	f := &fixture{storage: newMemStorage(seed...), versions: newMemVersions()}
	f.ctrl = editor.NewController(f.storage, version.NewService(f.versions, nil, nil), nil, nil, nil, nil, opts)
	sess, err := f.ctrl.Open(context.Background(), editor.OpenRequest{TenantID: tenantID, LayoutID: layoutID, Principal: owner()})
	require.NoError(t, err)
	f.sess = sess
	t.Cleanup(func() { _ = f.ctrl.Close(context.Background(), sess) })
	return f
}

func at(row, col int) (*int, *int) {
	return &row, &col
}

func rect(id string, t region.Type, row, col, rowSpan, colSpan int) region.Region {
	return region.Region{
		ID: id, LayoutID: layoutID, TenantID: tenantID, UserID: ownerID, Type: t,
		GridRow: row, GridCol: col, RowSpan: rowSpan, ColSpan: colSpan,
		MinWidth: region.MinPixels, MinHeight: region.MinPixels,
	}
}

func ids(regions []region.Region) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out
}
