package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads catalog items. The catalog is owned elsewhere; this core only reads it.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindBySKU(ctx context.Context, sku string) (*models.Item, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, mapError(err, "load item")
	}
	return &item, nil
}

// FindBySKU matches SKUs case-insensitively after trimming.
func (r *repository) FindBySKU(ctx context.Context, sku string) (*models.Item, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	var item models.Item
	if err := r.db.WithContext(ctx).Where("LOWER(sku) = LOWER(?)", sku).First(&item).Error; err != nil {
		return nil, mapError(err, "load item by sku")
	}
	return &item, nil
}

func mapError(err error, action string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
