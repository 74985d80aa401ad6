package ledger

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.StockRecord{}, &models.StockMovement{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})
}

func newTestService(t *testing.T, conn *gorm.DB, opts Options) Service {
	t.Helper()
	svc, err := NewService(db.NewWithConn(conn), NewRepository(conn), newTestLogger(), opts)
	require.NoError(t, err)
	return svc
}

func seedRecord(t *testing.T, conn *gorm.DB, record models.StockRecord) models.StockRecord {
	t.Helper()
	if record.ItemID == uuid.Nil {
		record.ItemID = uuid.New()
	}
	if record.LocationID == uuid.Nil {
		record.LocationID = uuid.New()
	}
	require.NoError(t, conn.Create(&record).Error)
	return record
}

func loadRecord(t *testing.T, conn *gorm.DB, record models.StockRecord) models.StockRecord {
	t.Helper()
	var got models.StockRecord
	require.NoError(t, conn.Where("item_id = ? AND location_id = ?", record.ItemID, record.LocationID).First(&got).Error)
	return got
}

func TestReserveWithinAvailable(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, TrackStock: true})

	res, err := svc.Reserve(context.Background(), rec.ItemID, rec.LocationID, 4)
	require.NoError(t, err)
	assert.True(t, res.Tracked)
	assert.Equal(t, 0, res.Backordered)

	got := loadRecord(t, conn, rec)
	assert.Equal(t, 4, got.ReservedQuantity)
	assert.Equal(t, 6, got.AvailableQuantity())
	assert.Equal(t, int64(1), got.Version)
}

func TestReserveBeyondAvailableIsRejected(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, TrackStock: true})

	_, err := svc.Reserve(context.Background(), rec.ItemID, rec.LocationID, 20)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.False(t, pkgerrors.IsRetryable(err))

	details, ok := pkgerrors.As(err).Details().(InsufficientStockDetails)
	require.True(t, ok)
	assert.Equal(t, 10, details.Available)
	assert.Equal(t, 20, details.Requested)

	got := loadRecord(t, conn, rec)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, 0, got.ReservedQuantity)
	assert.Equal(t, int64(0), got.Version)
}

func TestFulfillConsumesReservation(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, ReservedQuantity: 4, TrackStock: true})

	got, err := svc.Fulfill(context.Background(), rec.ItemID, rec.LocationID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Quantity)
	assert.Equal(t, 0, got.ReservedQuantity)

	stored := loadRecord(t, conn, rec)
	assert.Equal(t, 6, stored.Quantity)
	assert.Equal(t, 0, stored.ReservedQuantity)
}

func TestFulfillClampsToZero(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 3, ReservedQuantity: 3, TrackStock: true})

	got, err := svc.Fulfill(context.Background(), rec.ItemID, rec.LocationID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, 0, got.ReservedQuantity)

	var movement models.StockMovement
	require.NoError(t, conn.Where("item_id = ? AND type = ?", rec.ItemID, enums.StockMovementFulfill).First(&movement).Error)
	assert.True(t, movement.Anomaly)
	require.NotNil(t, movement.Note)
}

func TestUntrackedReserveLeavesStateUntouched(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 2, ReservedQuantity: 1, TrackStock: false})

	res, err := svc.Reserve(context.Background(), rec.ItemID, rec.LocationID, 1000000)
	require.NoError(t, err)
	assert.False(t, res.Tracked)

	got := loadRecord(t, conn, rec)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, 1, got.ReservedQuantity)
	assert.Equal(t, int64(0), got.Version)

	available, err := svc.GetAvailable(context.Background(), rec.ItemID, rec.LocationID)
	require.NoError(t, err)
	assert.Equal(t, models.UnboundedQuantity, available)

	_, err = svc.Fulfill(context.Background(), rec.ItemID, rec.LocationID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, loadRecord(t, conn, rec).Quantity)
}

func TestBackorderBypassesAvailability(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 2, ReservedQuantity: 2, TrackStock: true, AllowBackorder: true})
	ctx := context.Background()

	inStock, err := svc.IsInStock(ctx, rec.ItemID, rec.LocationID)
	require.NoError(t, err)
	assert.True(t, inStock)

	res, err := svc.Reserve(ctx, rec.ItemID, rec.LocationID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Backordered)

	got := loadRecord(t, conn, rec)
	assert.Equal(t, 3, got.ReservedQuantity)
	assert.Equal(t, 0, got.AvailableQuantity())
	assert.Equal(t, 1, got.BackorderedQuantity())
}

func TestReplenishCoversBackorderBeforeAvailability(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 0, ReservedQuantity: 3, TrackStock: true, AllowBackorder: true})
	ctx := context.Background()

	got, err := svc.Replenish(ctx, rec.ItemID, rec.LocationID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableQuantity())
	assert.Equal(t, 1, got.BackorderedQuantity())

	got, err = svc.Replenish(ctx, rec.ItemID, rec.LocationID, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AvailableQuantity())
	assert.Equal(t, 0, got.BackorderedQuantity())
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 50, ReservedQuantity: 7, TrackStock: true})
	ctx := context.Background()

	for _, qty := range []int{1, 5, 43} {
		_, err := svc.Reserve(ctx, rec.ItemID, rec.LocationID, qty)
		require.NoError(t, err)
		_, err = svc.Release(ctx, rec.ItemID, rec.LocationID, qty)
		require.NoError(t, err)
		assert.Equal(t, 7, loadRecord(t, conn, rec).ReservedQuantity, "qty=%d", qty)
	}
}

func TestReleaseClampsAndFlagsAnomaly(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 5, ReservedQuantity: 2, TrackStock: true})

	got, err := svc.Release(context.Background(), rec.ItemID, rec.LocationID, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedQuantity)

	var movement models.StockMovement
	require.NoError(t, conn.Where("item_id = ? AND type = ?", rec.ItemID, enums.StockMovementRelease).First(&movement).Error)
	assert.True(t, movement.Anomaly)
	assert.Equal(t, 9, movement.Quantity)
}

func TestNonPositiveQuantityIsRejected(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 5, ReservedQuantity: 1, TrackStock: true})
	ctx := context.Background()

	for _, qty := range []int{0, -3} {
		_, err := svc.Reserve(ctx, rec.ItemID, rec.LocationID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		_, err = svc.Release(ctx, rec.ItemID, rec.LocationID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		_, err = svc.Fulfill(ctx, rec.ItemID, rec.LocationID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		_, err = svc.Replenish(ctx, rec.ItemID, rec.LocationID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}

	got := loadRecord(t, conn, rec)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, 1, got.ReservedQuantity)
}

func TestMissingRecordIsNotFound(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})

	_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.IsInStock(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, TrackStock: true})

	// two services model two processes sharing the database
	services := []Service{
		newTestService(t, conn, Options{}),
		newTestService(t, conn, Options{}),
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), rec.ItemID, rec.LocationID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected reserve error: %v", err)
			}
		}(services[i%len(services)])
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 20, rejected)
	got := loadRecord(t, conn, rec)
	assert.Equal(t, 10, got.ReservedQuantity)
	assert.LessOrEqual(t, got.ReservedQuantity, got.Quantity)
}

func TestEnsureRecordCreatesOnce(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	ctx := context.Background()
	external := "sq-123"
	price := decimal.RequireFromString("4.25")
	input := EnsureRecordInput{
		ItemID:             uuid.New(),
		LocationID:         uuid.New(),
		Quantity:           8,
		MinQuantity:        2,
		StorePriceOverride: &price,
		ExternalProductID:  &external,
	}

	created, wasCreated, err := svc.EnsureRecord(ctx, input)
	require.NoError(t, err)
	assert.True(t, wasCreated)
	assert.True(t, created.TrackStock)
	assert.Equal(t, 8, created.Quantity)

	input.Quantity = 99
	again, wasCreated, err := svc.EnsureRecord(ctx, input)
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, 8, again.Quantity)

	found, err := svc.FindByExternalID(ctx, input.LocationID, external)
	require.NoError(t, err)
	assert.Equal(t, input.ItemID, found.ItemID)
	assert.True(t, found.StorePriceOverride.Valid)

	_, _, err = svc.EnsureRecord(ctx, EnsureRecordInput{ItemID: uuid.New(), LocationID: uuid.New(), Quantity: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplySnapshotOverwritesOnHandOnly(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, ReservedQuantity: 4, TrackStock: true})
	ctx := context.Background()
	syncedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	qty := 7
	got, err := svc.ApplySnapshot(ctx, SnapshotInput{
		ItemID:            rec.ItemID,
		LocationID:        rec.LocationID,
		Quantity:          &qty,
		ExternalProductID: "ext-1",
		SyncedAt:          syncedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)
	assert.Equal(t, 4, got.ReservedQuantity)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.LastSyncAt.Equal(syncedAt))

	price := decimal.RequireFromString("12.50")
	got, err = svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)
	assert.True(t, got.StorePriceOverride.Decimal.Equal(price))

	negative := -2
	got, err = svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID, Quantity: &negative})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	_, err = svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHistoryPaginatesNewestFirst(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, Options{})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, TrackStock: true})
	ctx := context.Background()

	_, err := svc.Reserve(ctx, rec.ItemID, rec.LocationID, 2)
	require.NoError(t, err)
	_, err = svc.Release(ctx, rec.ItemID, rec.LocationID, 1)
	require.NoError(t, err)
	_, err = svc.Replenish(ctx, rec.ItemID, rec.LocationID, 3)
	require.NoError(t, err)

	page, err := svc.History(ctx, rec.ItemID, rec.LocationID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Movements, 2)
	assert.Equal(t, enums.StockMovementReplenish, page.Movements[0].Type)
	assert.NotEmpty(t, page.Cursor)

	next, err := svc.History(ctx, rec.ItemID, rec.LocationID, pagination.Params{Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, next.Movements, 1)
	assert.Equal(t, enums.StockMovementReserve, next.Movements[0].Type)
	assert.Empty(t, next.Cursor)

	_, err = svc.History(ctx, rec.ItemID, rec.LocationID, pagination.Params{Cursor: "not-base64!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type recordingNotifier struct {
	mu        sync.Mutex
	records   []models.StockRecord
	snapshots []bool
}

func (n *recordingNotifier) QuantityChanged(ctx context.Context, record models.StockRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	n.snapshots = append(n.snapshots, IsSnapshot(ctx))
}

func TestNotifierSeesCommittedOnHandChanges(t *testing.T) {
	conn := newTestDB(t)
	notifier := &recordingNotifier{}
	svc := newTestService(t, conn, Options{Notifier: notifier})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, ReservedQuantity: 2, TrackStock: true})
	ctx := context.Background()

	_, err := svc.Reserve(ctx, rec.ItemID, rec.LocationID, 1)
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, rec.ItemID, rec.LocationID, 2)
	require.NoError(t, err)
	_, err = svc.Replenish(ctx, rec.ItemID, rec.LocationID, 4)
	require.NoError(t, err)

	require.Len(t, notifier.records, 2)
	assert.Equal(t, 8, notifier.records[0].Quantity)
	assert.Equal(t, 12, notifier.records[1].Quantity)
}

func TestSnapshotQuantityChangeNotifies(t *testing.T) {
	conn := newTestDB(t)
	notifier := &recordingNotifier{}
	svc := newTestService(t, conn, Options{Notifier: notifier})
	rec := seedRecord(t, conn, models.StockRecord{Quantity: 10, ReservedQuantity: 1, MinQuantity: 5, TrackStock: true})
	ctx := context.Background()

	qty := 3
	_, err := svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID, Quantity: &qty})
	require.NoError(t, err)
	price := decimal.RequireFromString("4.50")
	_, err = svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID, Price: &price})
	require.NoError(t, err)
	_, err = svc.ApplySnapshot(ctx, SnapshotInput{ItemID: rec.ItemID, LocationID: rec.LocationID, Quantity: &qty})
	require.NoError(t, err)

	require.Len(t, notifier.records, 1)
	assert.Equal(t, 3, notifier.records[0].Quantity)
	assert.True(t, notifier.records[0].BelowMinimum())
	assert.True(t, notifier.snapshots[0])

	_, err = svc.Replenish(ctx, rec.ItemID, rec.LocationID, 1)
	require.NoError(t, err)
	require.Len(t, notifier.snapshots, 2)
	assert.False(t, notifier.snapshots[1])
}

func TestDeleteMovementsBefore(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	itemID, locationID := uuid.New(), uuid.New()

	old := &models.StockMovement{ItemID: itemID, LocationID: locationID, Type: enums.StockMovementReserve, Quantity: 1, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := &models.StockMovement{ItemID: itemID, LocationID: locationID, Type: enums.StockMovementRelease, Quantity: 1}
	require.NoError(t, repo.AppendMovement(ctx, old))
	require.NoError(t, repo.AppendMovement(ctx, recent))

	deleted, err := repo.DeleteMovementsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.StockMovement
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}
