package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnboundedQuantity is reported as the available quantity of untracked records.
const UnboundedQuantity = math.MaxInt32

// StockRecord holds the stock state of one item at one location.
// Version is bumped on every write and guards optimistic updates.
type StockRecord struct {
	ItemID             uuid.UUID           `gorm:"column:item_id;type:uuid;primaryKey"`
	LocationID         uuid.UUID           `gorm:"column:location_id;type:uuid;primaryKey"`
	Quantity           int                 `gorm:"column:quantity;not null"`
	ReservedQuantity   int                 `gorm:"column:reserved_quantity;not null"`
	MinQuantity        int                 `gorm:"column:min_quantity;not null"`
	TrackStock         bool                `gorm:"column:track_stock;not null"`
	AllowBackorder     bool                `gorm:"column:allow_backorder;not null"`
	StorePriceOverride decimal.NullDecimal `gorm:"column:store_price_override;type:numeric(12,2)"`
	ExternalProductID  *string             `gorm:"column:external_product_id"`
	LastSyncAt         *time.Time          `gorm:"column:last_sync_at"`
	Version            int64               `gorm:"column:version;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableQuantity is the quantity a new reservation could claim.
// Untracked records report UnboundedQuantity.
func (r StockRecord) AvailableQuantity() int {
	if !r.TrackStock {
		return UnboundedQuantity
	}
	if avail := r.Quantity - r.ReservedQuantity; avail > 0 {
		return avail
	}
	return 0
}

// BackorderedQuantity is the part of the reservations not covered by on-hand stock.
func (r StockRecord) BackorderedQuantity() int {
	if !r.TrackStock {
		return 0
	}
	if over := r.ReservedQuantity - r.Quantity; over > 0 {
		return over
	}
	return 0
}

// InStock reports whether at least one unit can be promised.
func (r StockRecord) InStock() bool {
	return !r.TrackStock || r.AllowBackorder || r.AvailableQuantity() > 0
}

// BelowMinimum reports whether on-hand stock dropped under the reorder threshold.
func (r StockRecord) BelowMinimum() bool {
	return r.TrackStock && r.MinQuantity > 0 && r.Quantity < r.MinQuantity
}

// EffectivePrice returns the location override when set, otherwise base.
func (r StockRecord) EffectivePrice(base decimal.Decimal) decimal.Decimal {
	if r.StorePriceOverride.Valid {
		return r.StorePriceOverride.Decimal
	}
	return base
}
