package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// StockMovement is an append-only journal entry written alongside every stock mutation.
type StockMovement struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index:ix_stock_movements_key"`
	LocationID    uuid.UUID               `gorm:"column:location_id;type:uuid;not null;index:ix_stock_movements_key"`
	Type          enums.StockMovementType `gorm:"column:type;type:varchar(32);not null"`
	Quantity      int                     `gorm:"column:quantity;not null"`
	QuantityAfter int                     `gorm:"column:quantity_after;not null"`
	ReservedAfter int                     `gorm:"column:reserved_after;not null"`
	Anomaly       bool                    `gorm:"column:anomaly;not null"`
	Note          *string                 `gorm:"column:note"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
