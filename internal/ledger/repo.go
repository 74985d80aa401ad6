package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for stock records and their movement journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockRecord, error)
	FindByExternalID(ctx context.Context, locationID uuid.UUID, externalProductID string) (*models.StockRecord, error)
	Create(ctx context.Context, record *models.StockRecord) error
	UpdateVersioned(ctx context.Context, record *models.StockRecord, expectedVersion int64) (bool, error)
	AppendMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error)
	DeleteMovementsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type listMovementsParams struct {
	ItemID     uuid.UUID
	LocationID uuid.UUID
	Page       pagination.Params
	After      *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND location_id = ?", itemID, locationID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByExternalID(ctx context.Context, locationID uuid.UUID, externalProductID string) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("location_id = ? AND external_product_id = ?", locationID, externalProductID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Create(ctx context.Context, record *models.StockRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateVersioned writes the mutable stock columns only when the stored version
// still matches expectedVersion. A false result means another writer won.
func (r *repository) UpdateVersioned(ctx context.Context, record *models.StockRecord, expectedVersion int64) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("item_id = ? AND location_id = ? AND version = ?", record.ItemID, record.LocationID, expectedVersion).
		Updates(map[string]any{
			"quantity":             record.Quantity,
			"reserved_quantity":    record.ReservedQuantity,
			"store_price_override": record.StorePriceOverride,
			"external_product_id":  record.ExternalProductID,
			"last_sync_at":         record.LastSyncAt,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	record.Version = expectedVersion + 1
	record.UpdatedAt = now
	return true, nil
}

func (r *repository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error) {
	size := params.Page.Size()
	query := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("item_id = ? AND location_id = ?", params.ItemID, params.LocationID)
	if params.After != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.After.At, params.After.ID)
	}

	var movements []models.StockMovement
	if err := query.Order("created_at DESC, id DESC").Limit(size + 1).Find(&movements).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(movements, size, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{At: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

// DeleteMovementsBefore prunes journal rows older than cutoff.
func (r *repository) DeleteMovementsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.StockMovement{})
	return result.RowsAffected, result.Error
}
