// Package debounce provides a cancellable single-slot timer: each Trigger
// replaces the pending callback and restarts the delay.
package debounce

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of Trigger calls into one callback.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
	gen   uint64
}

// New creates a Debouncer. A non-positive delay runs callbacks inline.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Delay returns the configured delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn, superseding any callback that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	if d.delay <= 0 {
		d.Cancel()
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush runs the pending callback immediately on the calling goroutine.
// It reports whether a callback was pending.
func (d *Debouncer) Flush() bool {
	fn := d.take()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Cancel drops the pending callback without running it.
func (d *Debouncer) Cancel() bool {
	return d.take() != nil
}

// Pending reports whether a callback is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

func (d *Debouncer) take() func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn := d.fn
	d.fn = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return fn
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}
