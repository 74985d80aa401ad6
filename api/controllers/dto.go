package controllers

import (
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/availability"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type locationDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

func toLocationDTO(loc models.Location) locationDTO {
	return locationDTO{
		ID:        loc.ID,
		Name:      loc.Name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
}

// availabilityDTO hides the counts when the storefront is configured not to show stock.
type availabilityDTO struct {
	Location       locationDTO     `json:"location"`
	InStock        bool            `json:"inStock"`
	Available      *int            `json:"available,omitempty"`
	Unbounded      bool            `json:"unbounded"`
	Backorderable  bool            `json:"backorderable"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	DistanceKm     *float64        `json:"distanceKm,omitempty"`
}

func toAvailabilityDTO(entry availability.LocationAvailability, showStock bool) availabilityDTO {
	dto := availabilityDTO{
		Location:       toLocationDTO(entry.Location),
		InStock:        entry.Unbounded || entry.Backorderable || entry.Available > 0,
		Unbounded:      entry.Unbounded,
		Backorderable:  entry.Backorderable,
		EffectivePrice: entry.EffectivePrice,
	}
	if showStock && !entry.Unbounded {
		available := entry.Available
		dto.Available = &available
	}
	return dto
}

type stockRecordDTO struct {
	ItemID             uuid.UUID        `json:"itemId"`
	LocationID         uuid.UUID        `json:"locationId"`
	Quantity           int              `json:"quantity"`
	ReservedQuantity   int              `json:"reservedQuantity"`
	AvailableQuantity  int              `json:"availableQuantity"`
	BackorderedQty     int              `json:"backorderedQuantity"`
	MinQuantity        int              `json:"minQuantity"`
	TrackStock         bool             `json:"trackStock"`
	AllowBackorder     bool             `json:"allowBackorder"`
	StorePriceOverride *decimal.Decimal `json:"storePriceOverride,omitempty"`
	ExternalProductID  *string          `json:"externalProductId,omitempty"`
	LastSyncAt         *time.Time       `json:"lastSyncAt,omitempty"`
	Version            int64            `json:"version"`
}

func toStockRecordDTO(record models.StockRecord) stockRecordDTO {
	dto := stockRecordDTO{
		ItemID:            record.ItemID,
		LocationID:        record.LocationID,
		Quantity:          record.Quantity,
		ReservedQuantity:  record.ReservedQuantity,
		AvailableQuantity: record.AvailableQuantity(),
		BackorderedQty:    record.BackorderedQuantity(),
		MinQuantity:       record.MinQuantity,
		TrackStock:        record.TrackStock,
		AllowBackorder:    record.AllowBackorder,
		ExternalProductID: record.ExternalProductID,
		LastSyncAt:        record.LastSyncAt,
		Version:           record.Version,
	}
	if record.StorePriceOverride.Valid {
		price := record.StorePriceOverride.Decimal
		dto.StorePriceOverride = &price
	}
	return dto
}

type movementDTO struct {
	ID            uuid.UUID               `json:"id"`
	Type          enums.StockMovementType `json:"type"`
	Quantity      int                     `json:"quantity"`
	QuantityAfter int                     `json:"quantityAfter"`
	ReservedAfter int                     `json:"reservedAfter"`
	Anomaly       bool                    `json:"anomaly"`
	Note          *string                 `json:"note,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

func toMovementDTOs(movements []models.StockMovement) []movementDTO {
	out := make([]movementDTO, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementDTO{
			ID:            m.ID,
			Type:          m.Type,
			Quantity:      m.Quantity,
			QuantityAfter: m.QuantityAfter,
			ReservedAfter: m.ReservedAfter,
			Anomaly:       m.Anomaly,
			Note:          m.Note,
			CreatedAt:     m.CreatedAt,
		})
	}
	return out
}
