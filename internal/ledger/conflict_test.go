package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pagination"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// fakeRepository loses the version race conflicts times before succeeding.
type fakeRepository struct {
	record    models.StockRecord
	conflicts int
	updates   int
	movements []models.StockMovement
	findErr   error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Find(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	copied := f.record
	return &copied, nil
}

func (f *fakeRepository) FindByExternalID(ctx context.Context, locationID uuid.UUID, externalProductID string) (*models.StockRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) Create(ctx context.Context, record *models.StockRecord) error {
	f.record = *record
	return nil
}

func (f *fakeRepository) UpdateVersioned(ctx context.Context, record *models.StockRecord, expectedVersion int64) (bool, error) {
	f.updates++
	if f.conflicts > 0 {
		f.conflicts--
		f.record.Version++
		return false, nil
	}
	if expectedVersion != f.record.Version {
		return false, nil
	}
	record.Version = expectedVersion + 1
	f.record = *record
	return true, nil
}

func (f *fakeRepository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	f.movements = append(f.movements, *movement)
	return nil
}

func (f *fakeRepository) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error) {
	return f.movements, nil, nil
}

func (f *fakeRepository) DeleteMovementsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newFakeService(t *testing.T, repo Repository, reg prometheus.Registerer) Service {
	t.Helper()
	svc, err := NewService(stubTxRunner{}, repo, newTestLogger(), Options{
		ConflictRetries: 3,
		ConflictBackoff: time.Millisecond,
		Metrics:         metrics.NewLedgerMetrics(reg),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestReserveRetriesVersionConflicts(t *testing.T) {
	repo := &fakeRepository{
		record:    models.StockRecord{ItemID: uuid.New(), LocationID: uuid.New(), Quantity: 5, TrackStock: true},
		conflicts: 2,
	}
	svc := newFakeService(t, repo, prometheus.NewRegistry())

	res, err := svc.Reserve(context.Background(), repo.record.ItemID, repo.record.LocationID, 2)
	if err != nil {
		t.Fatalf("expected reserve to succeed after retries, got %v", err)
	}
	if repo.updates != 3 {
		t.Fatalf("expected 3 update attempts, got %d", repo.updates)
	}
	if res.Record.ReservedQuantity != 2 {
		t.Fatalf("expected reserved 2, got %d", res.Record.ReservedQuantity)
	}
	if len(repo.movements) != 1 {
		t.Fatalf("expected a single journal entry, got %d", len(repo.movements))
	}
}

func TestReserveSurfacesConflictWhenRetriesExhausted(t *testing.T) {
	repo := &fakeRepository{
		record:    models.StockRecord{ItemID: uuid.New(), LocationID: uuid.New(), Quantity: 5, TrackStock: true},
		conflicts: 10,
	}
	svc := newFakeService(t, repo, nil)

	_, err := svc.Reserve(context.Background(), repo.record.ItemID, repo.record.LocationID, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("exhausted conflicts should be retryable by the caller")
	}
	if !errors.Is(err, errVersionConflict) {
		t.Fatal("expected conflict cause to be preserved")
	}
	if repo.updates != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", repo.updates)
	}
	if len(repo.movements) != 0 {
		t.Fatalf("no movement should be journaled on failure, got %d", len(repo.movements))
	}
}

// signallingRepository reports the first lost version race on conflicted.
type signallingRepository struct {
	*fakeRepository
	conflicted chan struct{}
	once       sync.Once
}

func (r *signallingRepository) WithTx(tx *gorm.DB) Repository {
	return r
}

func (r *signallingRepository) UpdateVersioned(ctx context.Context, record *models.StockRecord, expectedVersion int64) (bool, error) {
	ok, err := r.fakeRepository.UpdateVersioned(ctx, record, expectedVersion)
	if !ok && err == nil {
		r.once.Do(func() { close(r.conflicted) })
	}
	return ok, err
}

func TestConflictBackoffDoesNotHoldKeyLock(t *testing.T) {
	repo := &signallingRepository{
		fakeRepository: &fakeRepository{
			record:    models.StockRecord{ItemID: uuid.New(), LocationID: uuid.New(), Quantity: 5, TrackStock: true},
			conflicts: 1,
		},
		conflicted: make(chan struct{}),
	}
	svc, err := NewService(stubTxRunner{}, repo, newTestLogger(), Options{
		ConflictRetries: 3,
		ConflictBackoff: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	itemID, locationID := repo.record.ItemID, repo.record.LocationID

	done := make(chan error, 1)
	go func() {
		_, err := svc.Reserve(context.Background(), itemID, locationID, 1)
		done <- err
	}()

	select {
	case <-repo.conflicted:
	case <-time.After(2 * time.Second):
		t.Fatal("reserve never hit the version conflict")
	}
	acquired := make(chan struct{})
	go func() {
		unlock := svc.(*service).locks.Lock(stockKey(itemID, locationID))
		unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(150 * time.Millisecond):
		t.Fatal("key lock held while waiting to retry")
	}

	if err := <-done; err != nil {
		t.Fatalf("expected reserve to succeed after retry, got %v", err)
	}
}

func TestRepositoryErrorsAreDependencyErrors(t *testing.T) {
	repo := &fakeRepository{findErr: errors.New("connection reset")}
	svc := newFakeService(t, repo, nil)

	_, err := svc.Release(context.Background(), uuid.New(), uuid.New(), 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	if _, err := NewService(nil, &fakeRepository{}, newTestLogger(), Options{}); err == nil {
		t.Fatal("expected tx runner error")
	}
	if _, err := NewService(stubTxRunner{}, nil, newTestLogger(), Options{}); err == nil {
		t.Fatal("expected repository error")
	}
	if _, err := NewService(stubTxRunner{}, &fakeRepository{}, nil, Options{}); err == nil {
		t.Fatal("expected logger error")
	}
}
