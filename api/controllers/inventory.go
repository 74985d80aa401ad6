package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stockMutationRequest struct {
	ItemID     uuid.UUID `json:"itemId" validate:"required"`
	LocationID uuid.UUID `json:"locationId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"gt=0"`
}

type reservationResponse struct {
	ItemID      uuid.UUID      `json:"itemId"`
	LocationID  uuid.UUID      `json:"locationId"`
	Quantity    int            `json:"quantity"`
	Tracked     bool           `json:"tracked"`
	Backordered int            `json:"backordered"`
	Record      stockRecordDTO `json:"record"`
}

func toReservationResponse(res *ledger.Reservation) reservationResponse {
	return reservationResponse{
		ItemID:      res.ItemID,
		LocationID:  res.LocationID,
		Quantity:    res.Quantity,
		Tracked:     res.Tracked,
		Backordered: res.Backordered,
		Record:      toStockRecordDTO(res.Record),
	}
}

// InventoryReserve claims quantity at one location.
func InventoryReserve(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body stockMutationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		res, err := svc.Reserve(ctx, body.ItemID, body.LocationID, body.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(res))
	}
}

type recordMutation func(ctx context.Context, itemID, locationID uuid.UUID, qty int) (*models.StockRecord, error)

func recordMutationHandler(mutate recordMutation, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body stockMutationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record, err := mutate(ctx, body.ItemID, body.LocationID, body.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStockRecordDTO(*record))
	}
}

// InventoryRelease returns reserved quantity to the available pool.
func InventoryRelease(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordMutationHandler(svc.Release, logg)
}

// InventoryFulfill consumes a reservation and the matching on-hand stock.
func InventoryFulfill(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordMutationHandler(svc.Fulfill, logg)
}

// InventoryReplenish adds received stock.
func InventoryReplenish(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordMutationHandler(svc.Replenish, logg)
}

type ensureRecordRequest struct {
	ItemID             uuid.UUID `json:"itemId" validate:"required"`
	LocationID         uuid.UUID `json:"locationId" validate:"required"`
	Quantity           int       `json:"quantity" validate:"gte=0"`
	MinQuantity        int       `json:"minQuantity" validate:"gte=0"`
	TrackStock         *bool     `json:"trackStock"`
	AllowBackorder     bool      `json:"allowBackorder"`
	StorePriceOverride *string   `json:"storePriceOverride"`
	ExternalProductID  *string   `json:"externalProductId" validate:"omitempty,max=128"`
}

// InventoryEnsureRecord seeds a stock record, returning 201 when it was created.
func InventoryEnsureRecord(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body ensureRecordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := ledger.EnsureRecordInput{
			ItemID:         body.ItemID,
			LocationID:     body.LocationID,
			Quantity:       body.Quantity,
			MinQuantity:    body.MinQuantity,
			TrackStock:     body.TrackStock,
			AllowBackorder: body.AllowBackorder,
		}
		if body.StorePriceOverride != nil {
			price, err := decimal.NewFromString(strings.TrimSpace(*body.StorePriceOverride))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store price override").
					WithDetails(map[string]any{"field": "storePriceOverride"}))
				return
			}
			input.StorePriceOverride = &price
		}
		if body.ExternalProductID != nil {
			if trimmed := strings.TrimSpace(*body.ExternalProductID); trimmed != "" {
				input.ExternalProductID = &trimmed
			}
		}

		record, created, err := svc.EnsureRecord(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, toStockRecordDTO(*record))
	}
}

type historyResponse struct {
	Movements []movementDTO `json:"movements"`
	Cursor    string        `json:"cursor,omitempty"`
}

// InventoryMovements pages through the stock journal of one record, newest first.
func InventoryMovements(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		locationID, err := validators.ParseUUIDParam(r, "locationId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.History(ctx, itemID, locationID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, historyResponse{
			Movements: toMovementDTOs(page.Movements),
			Cursor:    page.Cursor,
		})
	}
}
