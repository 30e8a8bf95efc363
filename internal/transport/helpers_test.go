package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

const (
	testTenant = "tenant-1"
	testLayout = "layout-1"
)

type recordingHandler struct {
	mu           sync.Mutex
	messages     []collab.Message
	disconnected []error
	block        chan struct{}
}

func (h *recordingHandler) HandleMessage(msg collab.Message) {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *recordingHandler) HandleDisconnect(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, err)
}

func (h *recordingHandler) count(t collab.MessageType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Type == t {
			n++
		}
	}
	return n
}

func (h *recordingHandler) disconnects() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.disconnected...)
}

type storeApplier struct {
	store *region.Store
}

func (a storeApplier) ApplyRemote(r region.Region) error {
	_, err := a.store.Put(r)
	return err
}

func (a storeApplier) LocalRegion(id string) (region.Region, bool) {
	r, err := a.store.Get(id)
	return r, err == nil
}

func (a storeApplier) RemoveRemote(id string) error {
	_, err := a.store.Remove(id)
	if errors.Is(err, region.ErrRegionNotFound) {
		return nil
	}
	return err
}

// memStorage backs editor sessions in hub tests.
type memStorage struct {
	mu      sync.Mutex
	regions []region.Region
}

func (m *memStorage) Get(_ context.Context, tenantID, id string) (*layout.Layout, error) {
	if id != testLayout {
		return nil, layout.ErrLayoutNotFound
	}
	return &layout.Layout{ID: testLayout, TenantID: tenantID, UserID: "owner", Name: "Shared"}, nil
}

func (m *memStorage) GetOrCreateDefault(ctx context.Context, tenantID, _, _ string) (*layout.Layout, error) {
	return m.Get(ctx, tenantID, testLayout)
}

func (m *memStorage) LoadRegions(_ context.Context, _, _ string) ([]region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]region.Region, len(m.regions))
	for i, r := range m.regions {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *memStorage) SaveRegions(_ context.Context, _, _ string, regions []region.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = regions
	return nil
}

func testRegion(id string, row, col int) region.Region {
	return region.Region{
		ID: id, LayoutID: testLayout, TenantID: testTenant, UserID: "owner",
		Type: region.TypeAnalytics, GridRow: row, GridCol: col, RowSpan: 2, ColSpan: 2,
		MinWidth: region.MinPixels, MinHeight: region.MinPixels,
	}
}
