package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStockRecordAvailableQuantity(t *testing.T) {
	cases := []struct {
		name      string
		record    StockRecord
		available int
		backorder int
		inStock   bool
	}{
		{name: "tracked with headroom", record: StockRecord{TrackStock: true, Quantity: 10, ReservedQuantity: 3}, available: 7, inStock: true},
		{name: "tracked exhausted", record: StockRecord{TrackStock: true, Quantity: 5, ReservedQuantity: 5}, available: 0},
		{name: "backordered", record: StockRecord{TrackStock: true, AllowBackorder: true, Quantity: 5, ReservedQuantity: 8}, available: 0, backorder: 3, inStock: true},
		{name: "untracked", record: StockRecord{TrackStock: false, Quantity: 0, ReservedQuantity: 4}, available: UnboundedQuantity, inStock: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.AvailableQuantity(); got != tc.available {
				t.Fatalf("expected available %d, got %d", tc.available, got)
			}
			if got := tc.record.BackorderedQuantity(); got != tc.backorder {
				t.Fatalf("expected backorder %d, got %d", tc.backorder, got)
			}
			if got := tc.record.InStock(); got != tc.inStock {
				t.Fatalf("expected inStock %v, got %v", tc.inStock, got)
			}
		})
	}
}

func TestStockRecordEffectivePrice(t *testing.T) {
	base := decimal.RequireFromString("19.99")

	record := StockRecord{}
	if got := record.EffectivePrice(base); !got.Equal(base) {
		t.Fatalf("expected base price, got %s", got)
	}

	record.StorePriceOverride = decimal.NewNullDecimal(decimal.RequireFromString("17.50"))
	if got := record.EffectivePrice(base); got.String() != "17.5" {
		t.Fatalf("expected override price 17.5, got %s", got)
	}
}

func TestStockRecordBelowMinimum(t *testing.T) {
	if !(StockRecord{TrackStock: true, Quantity: 2, MinQuantity: 5}).BelowMinimum() {
		t.Fatal("expected record below minimum")
	}
	if (StockRecord{TrackStock: false, Quantity: 0, MinQuantity: 5}).BelowMinimum() {
		t.Fatal("untracked records never report below minimum")
	}
}
