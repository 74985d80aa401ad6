package ledger

import (
	"context"
	"sync"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

// Dispatcher hands committed stock records to a handler off the caller's
// goroutine. Records for one (item, location) are handled one at a time, in
// version order. A record whose version is not newer than one already accepted
// for its key is dropped.
//
// With LatestOnly set, records still waiting behind an in-flight one are
// replaced by the newest, so an absolute quantity is never written after a
// fresher one.
type Dispatcher struct {
	handle     func(ctx context.Context, record models.StockRecord)
	latestOnly bool

	mu     sync.Mutex
	lanes  map[string]*lane
	newest map[string]int64
	wg     sync.WaitGroup
}

type lane struct {
	pending []dispatched
}

type dispatched struct {
	ctx    context.Context
	record models.StockRecord
}

// DispatcherOptions tunes a Dispatcher.
type DispatcherOptions struct {
	LatestOnly bool
}

func NewDispatcher(handle func(ctx context.Context, record models.StockRecord), opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		handle:     handle,
		latestOnly: opts.LatestOnly,
		lanes:      make(map[string]*lane),
		newest:     make(map[string]int64),
	}
}

// QuantityChanged queues record behind earlier records for the same key. The
// caller's cancellation does not reach the handler.
func (d *Dispatcher) QuantityChanged(ctx context.Context, record models.StockRecord) {
	key := stockKey(record.ItemID, record.LocationID)
	job := dispatched{ctx: context.WithoutCancel(ctx), record: record}

	d.mu.Lock()
	defer d.mu.Unlock()

	// version 0 marks a record that was never written through the ledger
	if record.Version > 0 {
		if record.Version <= d.newest[key] {
			return
		}
		d.newest[key] = record.Version
	}

	if l, ok := d.lanes[key]; ok {
		if d.latestOnly {
			l.pending = l.pending[:0]
		}
		l.pending = append(l.pending, job)
		return
	}

	l := &lane{pending: []dispatched{job}}
	d.lanes[key] = l
	d.wg.Add(1)
	go d.drain(key, l)
}

// Wait blocks until every queued record has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(key string, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.pending) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		job := l.pending[0]
		l.pending = l.pending[1:]
		d.mu.Unlock()

		d.handle(job.ctx, job.record)
	}
}
