package locations

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for locations.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	ListActive(ctx context.Context) ([]models.Location, error)
	ListSyncable(ctx context.Context) ([]models.Location, error)
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a location repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Location, error) {
	var rows []models.Location
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSyncable returns active locations linked to an external POS.
func (r *repository) ListSyncable(ctx context.Context) ([]models.Location, error) {
	var rows []models.Location
	if err := r.db.WithContext(ctx).
		Where("active = ? AND pos_provider <> ?", true, enums.POSProviderNone).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("id = ?", id).
		UpdateColumn("last_sync_at", at).Error
}
