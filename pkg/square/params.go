package square

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

// InventoryCount is the subset of a Square inventory count the sync reads.
type InventoryCount struct {
	CatalogObjectID string
	LocationID      string
	Quantity        int
	CalculatedAt    string
}

// PhysicalCountParams records an absolute on-hand count for one catalog variation.
type PhysicalCountParams struct {
	LocationID      string
	CatalogObjectID string
	Quantity        int
	OccurredAt      time.Time
	IdempotencyKey  string
}

func (p PhysicalCountParams) toSquareRequest(idempotencyKey string) *sq.BatchChangeInventoryRequest {
	occurredAt := p.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	changeType := sq.InventoryChangeTypePhysicalCount
	state := sq.InventoryStateInStock
	return &sq.BatchChangeInventoryRequest{
		IdempotencyKey: idempotencyKey,
		Changes: []*sq.InventoryChange{
			{
				Type: &changeType,
				PhysicalCount: &sq.InventoryPhysicalCount{
					CatalogObjectID: ptrString(strings.TrimSpace(p.CatalogObjectID)),
					LocationID:      ptrString(strings.TrimSpace(p.LocationID)),
					State:           &state,
					Quantity:        ptrString(strconv.Itoa(p.Quantity)),
					OccurredAt:      ptrString(occurredAt.UTC().Format(time.RFC3339)),
				},
			},
		},
	}
}

// parseQuantity converts Square's decimal-string quantities into whole units.
// Fractional counts are truncated toward zero.
func parseQuantity(raw *string) (int, error) {
	value := strings.TrimSpace(stringValue(raw))
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return int(d.IntPart()), nil
}

func ptrString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
