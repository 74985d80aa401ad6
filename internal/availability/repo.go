package availability

import (
	"context"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the stock and location rows the resolver ranks.
type Repository interface {
	ListRecordsForItem(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error)
	ListActiveLocations(ctx context.Context, ids []uuid.UUID) ([]models.Location, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a read-only availability repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListRecordsForItem(ctx context.Context, itemID uuid.UUID) ([]models.StockRecord, error) {
	var rows []models.StockRecord
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveLocations(ctx context.Context, ids []uuid.UUID) ([]models.Location, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Location
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", ids, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
