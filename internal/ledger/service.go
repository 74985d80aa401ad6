package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pagination"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultConflictRetries = 3
	defaultConflictBackoff = 10 * time.Millisecond
	conflictJitterPercent  = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// QuantityNotifier is told about committed on-hand changes (fulfill, replenish).
// It runs after the transaction, so failures cannot roll the mutation back.
type QuantityNotifier interface {
	QuantityChanged(ctx context.Context, record models.StockRecord)
}

// Service is the only writer of stock records.
type Service interface {
	Reserve(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*Reservation, error)
	Release(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error)
	Fulfill(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error)
	Replenish(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error)
	IsInStock(ctx context.Context, itemID, locationID uuid.UUID) (bool, error)
	GetAvailable(ctx context.Context, itemID, locationID uuid.UUID) (int, error)
	Get(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockRecord, error)
	FindByExternalID(ctx context.Context, locationID uuid.UUID, externalProductID string) (*models.StockRecord, error)
	EnsureRecord(ctx context.Context, input EnsureRecordInput) (*models.StockRecord, bool, error)
	ApplySnapshot(ctx context.Context, input SnapshotInput) (*models.StockRecord, error)
	History(ctx context.Context, itemID, locationID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

// Options tunes the conflict retry loop and optional collaborators.
type Options struct {
	ConflictRetries int
	ConflictBackoff time.Duration
	Metrics         *metrics.LedgerMetrics
	Notifier        QuantityNotifier
}

// Reservation describes a successful reserve call.
type Reservation struct {
	ItemID      uuid.UUID          `json:"itemId"`
	LocationID  uuid.UUID          `json:"locationId"`
	Quantity    int                `json:"quantity"`
	Tracked     bool               `json:"tracked"`
	Backordered int                `json:"backordered"`
	Record      models.StockRecord `json:"-"`
}

// EnsureRecordInput seeds a stock record the first time an item is sold at a location.
type EnsureRecordInput struct {
	ItemID             uuid.UUID
	LocationID         uuid.UUID
	Quantity           int
	MinQuantity        int
	TrackStock         *bool
	AllowBackorder     bool
	StorePriceOverride *decimal.Decimal
	ExternalProductID  *string
}

// SnapshotInput overwrites the externally owned parts of a record with POS data.
// Reserved quantities are never touched by a snapshot.
type SnapshotInput struct {
	ItemID            uuid.UUID
	LocationID        uuid.UUID
	Quantity          *int
	Price             *decimal.Decimal
	ExternalProductID string
	SyncedAt          time.Time
}

// HistoryPage is one page of the movement journal, newest first.
type HistoryPage struct {
	Movements []models.StockMovement `json:"movements"`
	Cursor    string                 `json:"cursor,omitempty"`
}

type service struct {
	tx       txRunner
	repo     Repository
	logg     *logger.Logger
	locks    *keyedMutex
	retries  int
	backoff  time.Duration
	metrics  *metrics.LedgerMetrics
	notifier QuantityNotifier
}

// NewService wires the stock ledger.
func NewService(tx txRunner, repo Repository, logg *logger.Logger, opts Options) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	retries := opts.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	backoff := opts.ConflictBackoff
	if backoff <= 0 {
		backoff = defaultConflictBackoff
	}
	return &service{
		tx:       tx,
		repo:     repo,
		logg:     logg,
		locks:    newKeyedMutex(),
		retries:  retries,
		backoff:  backoff,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
	}, nil
}

// outcome is what a mutation did to the record it was handed.
type outcome struct {
	changed bool
	anomaly bool
	note    string
}

type mutationFunc func(record *models.StockRecord) (outcome, error)

func (s *service) Reserve(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*Reservation, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}

	backordered := 0
	record, _, err := s.mutate(ctx, enums.StockMovementReserve, itemID, locationID, qty, func(record *models.StockRecord) (outcome, error) {
		backordered = 0
		if !record.TrackStock {
			return outcome{}, nil
		}
		available := record.AvailableQuantity()
		if available < qty && !record.AllowBackorder {
			return outcome{}, insufficientStock(record, qty)
		}
		if available < qty {
			backordered = qty - available
		}
		record.ReservedQuantity += qty
		return outcome{changed: true}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Reservation{
		ItemID:      itemID,
		LocationID:  locationID,
		Quantity:    qty,
		Tracked:     record.TrackStock,
		Backordered: backordered,
		Record:      *record,
	}, nil
}

func (s *service) Release(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}

	record, _, err := s.mutate(ctx, enums.StockMovementRelease, itemID, locationID, qty, func(record *models.StockRecord) (outcome, error) {
		if !record.TrackStock {
			return outcome{}, nil
		}
		result := outcome{changed: true}
		record.ReservedQuantity, result.anomaly = clampSub(record.ReservedQuantity, qty)
		if result.anomaly {
			result.note = "release exceeded reserved quantity"
		}
		return result, nil
	})
	return record, err
}

func (s *service) Fulfill(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}

	record, result, err := s.mutate(ctx, enums.StockMovementFulfill, itemID, locationID, qty, func(record *models.StockRecord) (outcome, error) {
		if !record.TrackStock {
			return outcome{}, nil
		}
		var quantityClamped, reservedClamped bool
		record.Quantity, quantityClamped = clampSub(record.Quantity, qty)
		record.ReservedQuantity, reservedClamped = clampSub(record.ReservedQuantity, qty)
		result := outcome{changed: true, anomaly: quantityClamped || reservedClamped}
		switch {
		case quantityClamped && reservedClamped:
			result.note = "fulfill exceeded on-hand and reserved quantity"
		case quantityClamped:
			result.note = "fulfill exceeded on-hand quantity"
		case reservedClamped:
			result.note = "fulfill exceeded reserved quantity"
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if result.changed {
		s.notify(ctx, record)
	}
	return record, nil
}

func (s *service) Replenish(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}

	record, result, err := s.mutate(ctx, enums.StockMovementReplenish, itemID, locationID, qty, func(record *models.StockRecord) (outcome, error) {
		if !record.TrackStock {
			return outcome{}, nil
		}
		record.Quantity += qty
		return outcome{changed: true}, nil
	})
	if err != nil {
		return nil, err
	}
	if result.changed {
		s.notify(ctx, record)
	}
	return record, nil
}

func (s *service) IsInStock(ctx context.Context, itemID, locationID uuid.UUID) (bool, error) {
	record, err := s.Get(ctx, itemID, locationID)
	if err != nil {
		return false, err
	}
	return record.InStock(), nil
}

func (s *service) GetAvailable(ctx context.Context, itemID, locationID uuid.UUID) (int, error) {
	record, err := s.Get(ctx, itemID, locationID)
	if err != nil {
		return 0, err
	}
	return record.AvailableQuantity(), nil
}

func (s *service) Get(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockRecord, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}
	record, err := s.repo.Find(ctx, itemID, locationID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return record, nil
}

func (s *service) FindByExternalID(ctx context.Context, locationID uuid.UUID, externalProductID string) (*models.StockRecord, error) {
	if locationID == uuid.Nil || externalProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id and external product id required")
	}
	record, err := s.repo.FindByExternalID(ctx, locationID, externalProductID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return record, nil
}

func (s *service) EnsureRecord(ctx context.Context, input EnsureRecordInput) (*models.StockRecord, bool, error) {
	if err := validateKey(input.ItemID, input.LocationID); err != nil {
		return nil, false, err
	}
	if input.Quantity < 0 || input.MinQuantity < 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "quantities must not be negative")
	}
	if input.StorePriceOverride != nil && input.StorePriceOverride.IsNegative() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "price override must not be negative")
	}

	unlock := s.locks.Lock(stockKey(input.ItemID, input.LocationID))
	defer unlock()

	existing, err := s.repo.Find(ctx, input.ItemID, input.LocationID)
	if err == nil {
		return existing, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, mapLoadError(err)
	}

	trackStock := true
	if input.TrackStock != nil {
		trackStock = *input.TrackStock
	}
	record := &models.StockRecord{
		ItemID:            input.ItemID,
		LocationID:        input.LocationID,
		Quantity:          input.Quantity,
		MinQuantity:       input.MinQuantity,
		TrackStock:        trackStock,
		AllowBackorder:    input.AllowBackorder,
		ExternalProductID: input.ExternalProductID,
	}
	if input.StorePriceOverride != nil {
		record.StorePriceOverride = decimal.NewNullDecimal(*input.StorePriceOverride)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, record); err != nil {
			return err
		}
		return repo.AppendMovement(ctx, newMovement(enums.StockMovementCreate, record, input.Quantity, outcome{}))
	})
	if err != nil {
		// another process created the record first
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.Find(ctx, input.ItemID, input.LocationID)
			if findErr != nil {
				return nil, false, mapLoadError(findErr)
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
	}

	logCtx := s.logg.WithStockKey(ctx, input.ItemID.String(), input.LocationID.String())
	s.logg.Info(logCtx, "ledger.record.created")
	return record, true, nil
}

func (s *service) ApplySnapshot(ctx context.Context, input SnapshotInput) (*models.StockRecord, error) {
	if err := validateKey(input.ItemID, input.LocationID); err != nil {
		return nil, err
	}
	if input.Quantity == nil && input.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot must carry a quantity or a price")
	}
	if input.Price != nil && input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot price must not be negative")
	}
	syncedAt := input.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	movementQty := 0
	if input.Quantity != nil {
		movementQty = *input.Quantity
	}

	quantityMoved := false
	record, _, err := s.mutate(ctx, enums.StockMovementSync, input.ItemID, input.LocationID, movementQty, func(record *models.StockRecord) (outcome, error) {
		result := outcome{changed: true}
		quantityMoved = false
		if input.Quantity != nil {
			qty := *input.Quantity
			if qty < 0 {
				qty = 0
				result.anomaly = true
				result.note = "pos reported negative quantity"
			}
			quantityMoved = record.Quantity != qty
			record.Quantity = qty
		}
		if input.Price != nil {
			record.StorePriceOverride = decimal.NewNullDecimal(*input.Price)
		}
		if input.ExternalProductID != "" {
			external := input.ExternalProductID
			record.ExternalProductID = &external
		}
		synced := syncedAt
		record.LastSyncAt = &synced
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if quantityMoved {
		s.notify(withSnapshot(ctx), record)
	}
	return record, nil
}

func (s *service) History(ctx context.Context, itemID, locationID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if err := validateKey(itemID, locationID); err != nil {
		return nil, err
	}

	after, err := params.Position()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := listMovementsParams{
		ItemID:     itemID,
		LocationID: locationID,
		Page:       params,
		After:      after,
	}

	rows, next, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}

	return &HistoryPage{Movements: rows, Cursor: next.String()}, nil
}

// mutate runs fn as a read-modify-write on one record. Same-key callers in this
// process queue on the keyed mutex for the length of one attempt; writers in
// other processes are caught by the version check and the attempt is retried
// with jittered backoff, without holding the mutex while it waits.
func (s *service) mutate(ctx context.Context, op enums.StockMovementType, itemID, locationID uuid.UUID, qty int, fn mutationFunc) (*models.StockRecord, outcome, error) {
	key := stockKey(itemID, locationID)

	var (
		record *models.StockRecord
		result outcome
	)
	backoff := retry.WithMaxRetries(uint64(s.retries-1),
		retry.WithJitterPercent(conflictJitterPercent, retry.NewExponential(s.backoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		unlock := s.locks.Lock(key)
		rec, res, err := s.attempt(ctx, op, itemID, locationID, qty, fn)
		unlock()
		if errors.Is(err, errVersionConflict) {
			s.metrics.IncConflict(string(op))
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		record, result = rec, res
		return nil
	})
	if errors.Is(err, errVersionConflict) {
		err = pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, fmt.Sprintf("%s gave up after %d attempts", op, s.retries))
	}
	s.metrics.ObserveOperation(string(op), resultLabel(err))
	if err != nil {
		return nil, outcome{}, err
	}

	if result.anomaly {
		s.metrics.IncAnomaly(string(op))
		logCtx := s.logg.WithStockKey(ctx, itemID.String(), locationID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"operation":      string(op),
			"quantity":       qty,
			"quantity_after": record.Quantity,
			"reserved_after": record.ReservedQuantity,
			"note":           result.note,
		})
		s.logg.Warn(logCtx, "ledger.mutation.clamped")
	}
	return record, result, nil
}

func (s *service) attempt(ctx context.Context, op enums.StockMovementType, itemID, locationID uuid.UUID, qty int, fn mutationFunc) (*models.StockRecord, outcome, error) {
	var (
		record *models.StockRecord
		result outcome
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Find(ctx, itemID, locationID)
		if err != nil {
			return mapLoadError(err)
		}
		expected := current.Version
		res, err := fn(current)
		if err != nil {
			return err
		}
		if res.changed {
			ok, err := repo.UpdateVersioned(ctx, current, expected)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock record")
			}
			if !ok {
				return errVersionConflict
			}
			if err := repo.AppendMovement(ctx, newMovement(op, current, qty, res)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
			}
		}
		record, result = current, res
		return nil
	})
	return record, result, err
}

func (s *service) notify(ctx context.Context, record *models.StockRecord) {
	if s.notifier == nil || record == nil {
		return
	}
	s.notifier.QuantityChanged(ctx, *record)
}

func newMovement(op enums.StockMovementType, record *models.StockRecord, qty int, result outcome) *models.StockMovement {
	movement := &models.StockMovement{
		ItemID:        record.ItemID,
		LocationID:    record.LocationID,
		Type:          op,
		Quantity:      qty,
		QuantityAfter: record.Quantity,
		ReservedAfter: record.ReservedQuantity,
		Anomaly:       result.anomaly,
	}
	if result.note != "" {
		note := result.note
		movement.Note = &note
	}
	return movement
}

func validateKey(itemID, locationID uuid.UUID) error {
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if locationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	return nil
}

// clampSub returns max(0, a-b) and whether clamping happened.
func clampSub(a, b int) (int, bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}

func stockKey(itemID, locationID uuid.UUID) string {
	return itemID.String() + ":" + locationID.String()
}
