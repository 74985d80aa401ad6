package ledger

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
)

// errVersionConflict marks an attempt that lost the optimistic version check.
var errVersionConflict = errors.New("stock record version changed")

// InsufficientStockDetails is attached to CodeInsufficientStock errors.
type InsufficientStockDetails struct {
	ItemID    string `json:"itemId"`
	Location  string `json:"locationId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func insufficientStock(record *models.StockRecord, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("requested %d but only %d available", requested, record.AvailableQuantity())).
		WithDetails(InsufficientStockDetails{
			ItemID:    record.ItemID.String(),
			Location:  record.LocationID.String(),
			Requested: requested,
			Available: record.AvailableQuantity(),
		})
}

func validateQuantity(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	return nil
}

func mapLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
}

// resultLabel buckets an operation error for metrics.
func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.ResultError
	}
	switch typed.Code() {
	case pkgerrors.CodeConcurrencyConflict:
		return metrics.ResultConflict
	case pkgerrors.CodeValidation, pkgerrors.CodeInsufficientStock, pkgerrors.CodeNotFound:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
