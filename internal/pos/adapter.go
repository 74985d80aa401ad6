package pos

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// InventoryLine is one row of a remote stock snapshot.
type InventoryLine struct {
	ProductID string
	SKU       string
	Quantity  int
}

// PriceLine is one row of a remote price snapshot.
type PriceLine struct {
	ProductID string
	Price     decimal.Decimal
}

// Adapter is the capability set every POS integration implements.
type Adapter interface {
	Provider() enums.POSProvider
	PullInventory(ctx context.Context, location models.Location) ([]InventoryLine, error)
	PullPrices(ctx context.Context, location models.Location) ([]PriceLine, error)
	// PushQuantity reports whether the provider accepted the new count.
	PushQuantity(ctx context.Context, location models.Location, record models.StockRecord) (bool, error)
}

// SKUResolver is implemented by adapters that can look up a product's SKU remotely.
// Sync uses it to link products the snapshot lists without a SKU.
type SKUResolver interface {
	ResolveSKU(ctx context.Context, location models.Location, productID string) (string, error)
}
