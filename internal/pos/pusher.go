package pos

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/internal/locations"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

// Pusher forwards committed local quantity changes to the location's POS.
// Pushes are best effort and run off the caller's goroutine, one at a time per
// stock record; a push waiting behind an in-flight one is superseded by newer
// quantities.
type Pusher struct {
	registry  *Registry
	locations locations.Service
	logg      *logger.Logger
	policy    CallPolicy
	queue     *ledger.Dispatcher
}

// NewPusher returns a Pusher; it satisfies ledger.QuantityNotifier.
func NewPusher(registry *Registry, locs locations.Service, logg *logger.Logger, policy CallPolicy) (*Pusher, error) {
	if registry == nil {
		return nil, fmt.Errorf("pos registry required")
	}
	if locs == nil {
		return nil, fmt.Errorf("locations service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	p := &Pusher{registry: registry, locations: locs, logg: logg, policy: policy}
	p.queue = ledger.NewDispatcher(p.push, ledger.DispatcherOptions{LatestOnly: true})
	return p, nil
}

func (p *Pusher) QuantityChanged(ctx context.Context, record models.StockRecord) {
	if record.ExternalProductID == nil || *record.ExternalProductID == "" {
		return
	}
	// the POS already holds the quantity it reported
	if ledger.IsSnapshot(ctx) {
		return
	}
	p.queue.QuantityChanged(ctx, record)
}

// Wait blocks until queued pushes finish.
func (p *Pusher) Wait() {
	p.queue.Wait()
}

func (p *Pusher) push(ctx context.Context, record models.StockRecord) {
	ctx = p.logg.WithStockKey(ctx, record.ItemID.String(), record.LocationID.String())

	location, err := p.locations.Get(ctx, record.LocationID)
	if err != nil {
		p.logg.Error(ctx, "pos.push.location_lookup_failed", err)
		return
	}
	if !location.Active || !location.POSProvider.Syncable() {
		return
	}
	adapter, err := p.registry.Adapter(ctx, location.POSProvider)
	if err != nil {
		p.logg.Warn(ctx, fmt.Sprintf("pos.push.skipped: %v", err))
		return
	}

	accepted, err := call(ctx, p.policy, "push quantity", func(ctx context.Context) (bool, error) {
		return adapter.PushQuantity(ctx, *location, record)
	})
	if err != nil {
		p.logg.Error(ctx, "pos.push.failed", err)
		return
	}
	if !accepted {
		p.logg.Warn(ctx, "pos.push.not_accepted")
		return
	}
	p.logg.Info(p.logg.WithField(ctx, "quantity", record.Quantity), "pos.push.completed")
}
