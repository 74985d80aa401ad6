package enums

import "fmt"

// StockMovementType classifies an entry in the stock movement journal.
type StockMovementType string

const (
	StockMovementReserve   StockMovementType = "reserve"
	StockMovementRelease   StockMovementType = "release"
	StockMovementFulfill   StockMovementType = "fulfill"
	StockMovementReplenish StockMovementType = "replenish"
	StockMovementSync      StockMovementType = "sync"
	StockMovementCreate    StockMovementType = "create"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementReserve,
	StockMovementRelease,
	StockMovementFulfill,
	StockMovementReplenish,
	StockMovementSync,
	StockMovementCreate,
}

// IsValid reports whether the value matches the canonical movement types.
func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockMovementType converts raw input into StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}
