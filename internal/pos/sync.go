package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-inventory/internal/catalog"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/internal/locations"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
)

const (
	outcomeApplied = "applied"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Synced counts the snapshot lines applied to the ledger.
type Synced struct {
	Stock  int `json:"stock"`
	Prices int `json:"prices"`
}

// SyncResult is the aggregate outcome of one location sync.
// Errors holds one entry per failed line; the batch is never aborted by them.
type SyncResult struct {
	LocationID uuid.UUID `json:"locationId"`
	Provider   string    `json:"provider"`
	Synced     Synced    `json:"synced"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
	SyncedAt   time.Time `json:"syncedAt"`
}

// RunSummary aggregates a SyncAll pass.
type RunSummary struct {
	Locations int
	Failed    int
	Stock     int
	Prices    int
	Errors    int
}

// Syncer reconciles local stock records against POS snapshots.
type Syncer interface {
	SyncLocation(ctx context.Context, location models.Location) (*SyncResult, error)
	SyncLocationByID(ctx context.Context, locationID uuid.UUID) (*SyncResult, error)
	SyncAll(ctx context.Context) (*RunSummary, error)
}

// SyncerParams wires the syncer's collaborators.
type SyncerParams struct {
	Registry    *Registry
	Ledger      ledger.Service
	Catalog     catalog.Repository
	Locations   locations.Service
	Logger      *logger.Logger
	Metrics     *metrics.SyncMetrics
	Policy      CallPolicy
	Concurrency int
}

type syncer struct {
	registry    *Registry
	ledger      ledger.Service
	catalog     catalog.Repository
	locations   locations.Service
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics
	policy      CallPolicy
	concurrency int
	now         func() time.Time
}

// NewSyncer validates the collaborators and returns a Syncer.
func NewSyncer(params SyncerParams) (Syncer, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("pos registry required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("locations service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &syncer{
		registry:    params.Registry,
		ledger:      params.Ledger,
		catalog:     params.Catalog,
		locations:   params.Locations,
		logg:        params.Logger,
		metrics:     params.Metrics,
		policy:      params.Policy,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *syncer) SyncLocationByID(ctx context.Context, locationID uuid.UUID) (*SyncResult, error) {
	location, err := s.locations.GetActive(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return s.SyncLocation(ctx, *location)
}

func (s *syncer) SyncLocation(ctx context.Context, location models.Location) (*SyncResult, error) {
	provider := location.POSProvider.String()
	ctx = s.logg.WithLocationID(ctx, location.ID.String())
	ctx = s.logg.WithField(ctx, "pos_provider", provider)

	adapter, err := s.registry.Adapter(ctx, location.POSProvider)
	if err != nil {
		s.metrics.ObserveRun(provider, runResult(err), 0)
		return nil, err
	}
	if _, err := remoteLocationID(location); err != nil {
		s.metrics.ObserveRun(provider, runResult(err), 0)
		return nil, err
	}

	started := time.Now()
	syncedAt := s.now()
	result := &SyncResult{
		LocationID: location.ID,
		Provider:   provider,
		SyncedAt:   syncedAt,
		Errors:     []string{},
	}

	// remote snapshots are fetched before any ledger lock is taken
	lines, err := call(ctx, s.policy, "pull inventory", func(ctx context.Context) ([]InventoryLine, error) {
		return adapter.PullInventory(ctx, location)
	})
	pulled := err == nil
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// refused credentials skip the whole location; prices would fail the same way
		if pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
			s.registry.Invalidate(location.POSProvider)
			s.metrics.ObserveRun(provider, runResult(err), time.Since(started))
			return nil, err
		}
		result.Errors = append(result.Errors, fmt.Sprintf("pull inventory: %v", err))
	}
	for _, line := range lines {
		if err := s.applyStockLine(ctx, adapter, location, line, syncedAt); err != nil {
			result.Errors = append(result.Errors, lineError(line.ProductID, err))
			s.logg.Warn(s.logg.WithField(ctx, "pos_product_id", line.ProductID), fmt.Sprintf("pos.sync.stock_line_failed: %v", err))
			continue
		}
		result.Synced.Stock++
	}

	prices, err := call(ctx, s.policy, "pull prices", func(ctx context.Context) ([]PriceLine, error) {
		return adapter.PullPrices(ctx, location)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
			s.registry.Invalidate(location.POSProvider)
			s.metrics.ObserveRun(provider, runResult(err), time.Since(started))
			return nil, err
		}
		pulled = false
		result.Errors = append(result.Errors, fmt.Sprintf("pull prices: %v", err))
	}
	for _, line := range prices {
		applied, err := s.applyPriceLine(ctx, location, line, syncedAt)
		if err != nil {
			result.Errors = append(result.Errors, lineError(line.ProductID, err))
			s.logg.Warn(s.logg.WithField(ctx, "pos_product_id", line.ProductID), fmt.Sprintf("pos.sync.price_line_failed: %v", err))
			continue
		}
		if !applied {
			result.Skipped++
			continue
		}
		result.Synced.Prices++
	}

	if pulled {
		if err := s.locations.MarkSynced(ctx, location.ID, syncedAt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("mark synced: %v", err))
		}
	}

	s.metrics.AddLines(provider, outcomeApplied, result.Synced.Stock+result.Synced.Prices)
	s.metrics.AddLines(provider, outcomeFailed, len(result.Errors))
	s.metrics.AddLines(provider, outcomeSkipped, result.Skipped)
	outcome := metrics.ResultOK
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	s.metrics.ObserveRun(provider, outcome, time.Since(started))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"synced_stock":  result.Synced.Stock,
		"synced_prices": result.Synced.Prices,
		"skipped":       result.Skipped,
		"errors":        len(result.Errors),
	})
	if len(result.Errors) > 0 {
		s.logg.Warn(logCtx, "pos.sync.completed_with_errors")
	} else {
		s.logg.Info(logCtx, "pos.sync.completed")
	}
	return result, nil
}

func (s *syncer) SyncAll(ctx context.Context) (*RunSummary, error) {
	targets, err := s.locations.ListSyncable(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		summary = &RunSummary{Locations: len(targets)}
		runErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, location := range targets {
		g.Go(func() error {
			result, err := s.SyncLocation(gctx, location)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				// skipped locations are reported once per run, not per line
				runErr = multierr.Append(runErr, fmt.Errorf("location %s: %w", location.ID, err))
				return nil
			}
			summary.Stock += result.Synced.Stock
			summary.Prices += result.Synced.Prices
			summary.Errors += len(result.Errors)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	if runErr != nil {
		s.logg.Error(ctx, "pos.sync_all.locations_skipped", runErr)
	}
	return summary, runErr
}

func (s *syncer) applyStockLine(ctx context.Context, adapter Adapter, location models.Location, line InventoryLine, syncedAt time.Time) error {
	if line.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot line has no product id")
	}
	record, err := s.ledger.FindByExternalID(ctx, location.ID, line.ProductID)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		record, err = s.link(ctx, adapter, location, line)
		if err != nil {
			return err
		}
	}

	qty := line.Quantity
	_, err = s.ledger.ApplySnapshot(ctx, ledger.SnapshotInput{
		ItemID:            record.ItemID,
		LocationID:        location.ID,
		Quantity:          &qty,
		ExternalProductID: line.ProductID,
		SyncedAt:          syncedAt,
	})
	return err
}

// link attaches a first-seen remote product to the catalog item with the same SKU.
func (s *syncer) link(ctx context.Context, adapter Adapter, location models.Location, line InventoryLine) (*models.StockRecord, error) {
	sku := line.SKU
	if sku == "" {
		resolver, ok := adapter.(SKUResolver)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no stock record linked and provider cannot resolve sku")
		}
		resolved, err := call(ctx, s.policy, "resolve sku", func(ctx context.Context) (string, error) {
			return resolver.ResolveSKU(ctx, location, line.ProductID)
		})
		if err != nil {
			return nil, err
		}
		sku = strings.TrimSpace(resolved)
	}
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "remote product has no sku")
	}

	item, err := s.catalog.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	externalID := line.ProductID
	record, created, err := s.ledger.EnsureRecord(ctx, ledger.EnsureRecordInput{
		ItemID:            item.ID,
		LocationID:        location.ID,
		ExternalProductID: &externalID,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logg.Info(s.logg.WithStockKey(ctx, item.ID.String(), location.ID.String()), "pos.sync.product_linked")
	}
	return record, nil
}

func (s *syncer) applyPriceLine(ctx context.Context, location models.Location, line PriceLine, syncedAt time.Time) (bool, error) {
	if line.ProductID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "price line has no product id")
	}
	record, err := s.ledger.FindByExternalID(ctx, location.ID, line.ProductID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	price := line.Price
	if _, err := s.ledger.ApplySnapshot(ctx, ledger.SnapshotInput{
		ItemID:     record.ItemID,
		LocationID: location.ID,
		Price:      &price,
		SyncedAt:   syncedAt,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func lineError(productID string, err error) string {
	if productID == "" {
		productID = "<unknown>"
	}
	return fmt.Sprintf("%s: %v", productID, err)
}

func runResult(err error) string {
	switch {
	case errors.Is(err, ErrNotImplemented):
		return "not_implemented"
	case pkgerrors.IsCode(err, pkgerrors.CodeConfiguration):
		return "misconfigured"
	default:
		return metrics.ResultError
	}
}
