package collab_test

import (
	"context"
	"errors"
	"sync"

	"github.com/rpggio/gridlayout/internal/domain/collab"
	"github.com/rpggio/gridlayout/internal/domain/region"
)

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

type recordingConn struct {
	mu     sync.Mutex
	sent   []collab.Message
	fail   error
	closed bool
}

func (c *recordingConn) Send(_ context.Context, msg collab.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *recordingConn) messages(types ...collab.MessageType) []collab.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []collab.Message
	for _, m := range c.sent {
		if len(types) == 0 {
			out = append(out, m)
			continue
		}
		for _, t := range types {
			if m.Type == t {
				out = append(out, m)
			}
		}
	}
	return out
}

type recordingDialer struct {
	mu    sync.Mutex
	conns []*recordingConn
	err   error
}

func (d *recordingDialer) Dial(_ context.Context, _, _ string, _ collab.Handler) (collab.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := &recordingConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *recordingDialer) last() *recordingConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func rect(id string, row, col, rowSpan, colSpan int) region.Region {
	return region.Region{
		ID:        id,
		Type:      region.TypeCustom,
		GridRow:   row,
		GridCol:   col,
		RowSpan:   rowSpan,
		ColSpan:   colSpan,
		MinWidth:  100,
		MinHeight: 100,
	}
}
