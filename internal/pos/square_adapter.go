package pos

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/square"
)

type squareInventory interface {
	ListInventoryCounts(ctx context.Context, locationID string) ([]square.InventoryCount, error)
	SetPhysicalCount(ctx context.Context, params square.PhysicalCountParams) error
}

// SquareAdapter syncs stock with Square inventory counts.
// Square keeps location prices on catalog variations, so PullPrices is always empty.
type SquareAdapter struct {
	client squareInventory
}

// NewSquareAdapter builds a Square client from the credentials.
func NewSquareAdapter(ctx context.Context, creds Credentials, logg *logger.Logger) (*SquareAdapter, error) {
	client, err := square.NewClient(ctx, config.SquareConfig{AccessToken: creds.Token, Env: creds.Environment}, logg)
	if err != nil {
		return nil, err
	}
	return &SquareAdapter{client: client}, nil
}

func (a *SquareAdapter) Provider() enums.POSProvider {
	return enums.POSProviderSquare
}

func (a *SquareAdapter) PullInventory(ctx context.Context, location models.Location) ([]InventoryLine, error) {
	remoteID, err := remoteLocationID(location)
	if err != nil {
		return nil, err
	}
	counts, err := a.client.ListInventoryCounts(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	lines := make([]InventoryLine, 0, len(counts))
	for _, count := range counts {
		lines = append(lines, InventoryLine{
			ProductID: count.CatalogObjectID,
			Quantity:  count.Quantity,
		})
	}
	return lines, nil
}

func (a *SquareAdapter) PullPrices(ctx context.Context, location models.Location) ([]PriceLine, error) {
	return nil, nil
}

func (a *SquareAdapter) PushQuantity(ctx context.Context, location models.Location, record models.StockRecord) (bool, error) {
	remoteID, err := remoteLocationID(location)
	if err != nil {
		return false, err
	}
	if record.ExternalProductID == nil || *record.ExternalProductID == "" {
		return false, nil
	}
	err = a.client.SetPhysicalCount(ctx, square.PhysicalCountParams{
		LocationID:      remoteID,
		CatalogObjectID: *record.ExternalProductID,
		Quantity:        record.Quantity,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
