package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// ListInventoryCounts returns the IN_STOCK counts Square holds for one location.
func (c *Client) ListInventoryCounts(ctx context.Context, locationID string) ([]InventoryCount, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, errors.New("square location id is required")
	}

	var counts []InventoryCount
	err := c.call(ctx, "batch_get_inventory_counts", map[string]any{"square_location_id": locationID}, func(ctx context.Context) error {
		req := &sq.BatchGetInventoryCountsRequest{
			LocationIDs: []string{locationID},
			States:      []sq.InventoryState{sq.InventoryStateInStock},
		}
		for {
			resp, err := c.sdk.Inventory.BatchGetCounts(ctx, req)
			if err != nil {
				return err
			}
			for _, count := range resp.GetCounts() {
				if count == nil {
					continue
				}
				qty, err := parseQuantity(count.GetQuantity())
				if err != nil {
					return fmt.Errorf("count for %s: %w", stringValue(count.GetCatalogObjectID()), err)
				}
				counts = append(counts, InventoryCount{
					CatalogObjectID: stringValue(count.GetCatalogObjectID()),
					LocationID:      stringValue(count.GetLocationID()),
					Quantity:        qty,
					CalculatedAt:    stringValue(count.GetCalculatedAt()),
				})
			}
			cursor := strings.TrimSpace(stringValue(resp.GetCursor()))
			if cursor == "" {
				return nil
			}
			if cursor == stringValue(req.Cursor) {
				return errors.New("square returned the same cursor twice")
			}
			req.Cursor = &cursor
		}
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// SetPhysicalCount overwrites the on-hand count of one variation at a location.
func (c *Client) SetPhysicalCount(ctx context.Context, params PhysicalCountParams) error {
	if params.Quantity < 0 {
		params.Quantity = 0
	}
	req := params.toSquareRequest(idempotencyKey("inventory.count", params.IdempotencyKey))
	fields := map[string]any{
		"square_location_id": params.LocationID,
		"catalog_object_id":  params.CatalogObjectID,
		"quantity":           params.Quantity,
	}
	return c.call(ctx, "batch_create_inventory_changes", fields, func(ctx context.Context) error {
		_, err := c.sdk.Inventory.BatchCreateChanges(ctx, req)
		return err
	})
}
