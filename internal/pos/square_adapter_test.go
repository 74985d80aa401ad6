package pos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/square"
)

type fakeSquareInventory struct {
	counts     []square.InventoryCount
	locationID string
	pushed     []square.PhysicalCountParams
	err        error
}

func (f *fakeSquareInventory) ListInventoryCounts(ctx context.Context, locationID string) ([]square.InventoryCount, error) {
	f.locationID = locationID
	return f.counts, f.err
}

func (f *fakeSquareInventory) SetPhysicalCount(ctx context.Context, params square.PhysicalCountParams) error {
	f.pushed = append(f.pushed, params)
	return f.err
}

func squareLocation() models.Location {
	remote := "SQ-LOC"
	return models.Location{ID: uuid.New(), Active: true, POSProvider: enums.POSProviderSquare, POSLocationID: &remote}
}

func TestSquareAdapterPullInventory(t *testing.T) {
	client := &fakeSquareInventory{counts: []square.InventoryCount{
		{CatalogObjectID: "VAR-1", LocationID: "SQ-LOC", Quantity: 3},
		{CatalogObjectID: "VAR-2", LocationID: "SQ-LOC", Quantity: 0},
	}}
	adapter := &SquareAdapter{client: client}

	lines, err := adapter.PullInventory(context.Background(), squareLocation())
	if err != nil {
		t.Fatalf("pull inventory: %v", err)
	}
	if client.locationID != "SQ-LOC" {
		t.Fatalf("unexpected square location %q", client.locationID)
	}
	if len(lines) != 2 || lines[0].ProductID != "VAR-1" || lines[0].Quantity != 3 || lines[0].SKU != "" {
		t.Fatalf("unexpected lines %+v", lines)
	}

	prices, err := adapter.PullPrices(context.Background(), squareLocation())
	if err != nil || len(prices) != 0 {
		t.Fatalf("square prices should be empty, got %v %v", prices, err)
	}
	if _, ok := Adapter(adapter).(SKUResolver); ok {
		t.Fatal("square adapter should not resolve skus")
	}
}

func TestSquareAdapterPushQuantity(t *testing.T) {
	client := &fakeSquareInventory{}
	adapter := &SquareAdapter{client: client}
	external := "VAR-1"

	ok, err := adapter.PushQuantity(context.Background(), squareLocation(), models.StockRecord{Quantity: 11, ExternalProductID: &external})
	if err != nil || !ok {
		t.Fatalf("push: ok=%v err=%v", ok, err)
	}
	if len(client.pushed) != 1 {
		t.Fatalf("expected one push, got %d", len(client.pushed))
	}
	got := client.pushed[0]
	if got.CatalogObjectID != "VAR-1" || got.LocationID != "SQ-LOC" || got.Quantity != 11 || got.OccurredAt.IsZero() {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestSquareAdapterPropagatesErrors(t *testing.T) {
	adapter := &SquareAdapter{client: &fakeSquareInventory{err: pkgerrors.New(pkgerrors.CodeRateLimit, "slow down")}}
	_, err := adapter.PullInventory(context.Background(), squareLocation())
	if !pkgerrors.IsCode(err, pkgerrors.CodeRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	unlinked := squareLocation()
	unlinked.POSLocationID = nil
	_, err = adapter.PullInventory(context.Background(), unlinked)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
