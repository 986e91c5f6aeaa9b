package listings

import (
	"context"
	"sync"
	"time"
)

const DefaultDebounce = 300 * time.Millisecond

// FilterSink is what a Debouncer flushes merged filters into.
type FilterSink interface {
	Filters() Filters
	SetFilters(ctx context.Context, filters Filters) error
}

// Debouncer merges filter changes that arrive within one window and applies
// the merged result to the sink once the window is quiet.
type Debouncer struct {
	sink    FilterSink
	window  time.Duration
	applied func(Filters, error)

	mu      sync.Mutex
	ctx     context.Context
	pending Filters
	dirty   bool
	timer   *time.Timer
	stopped bool
	flights sync.WaitGroup
}

// NewDebouncer starts from the sink's current filters. applied, if set, is
// called after each flush with the filters sent and the fetch result.
func NewDebouncer(ctx context.Context, sink FilterSink, window time.Duration, applied func(Filters, error)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		sink:    sink,
		window:  window,
		applied: applied,
		ctx:     ctx,
		pending: sink.Filters(),
	}
}

// Update applies change to the pending filters and restarts the window.
func (d *Debouncer) Update(change func(*Filters)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	change(&d.pending)
	d.dirty = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// Pending returns the merged filters not yet flushed.
func (d *Debouncer) Pending() Filters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush applies pending changes now instead of waiting for the window.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.fire()
}

// Stop drops pending changes and waits for a flush already under way.
// Later updates are ignored. It must not be called from the applied callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.dirty = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.flights.Wait()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.dirty || d.stopped {
		d.mu.Unlock()
		return
	}
	filters := d.pending
	d.dirty = false
	ctx := d.ctx
	d.flights.Add(1)
	d.mu.Unlock()
	defer d.flights.Done()

	err := d.sink.SetFilters(ctx, filters)
	if d.applied != nil {
		d.applied(filters, err)
	}
}
