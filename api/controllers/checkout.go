package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/google/uuid"
)

type checkoutLocationResponse struct {
	Policy   checkoutlocation.Policy `json:"policy"`
	Location *locationDTO            `json:"location"`
}

func sessionFromRequest(r *http.Request) (string, error) {
	sessionID := checkoutlocation.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "X-Session-Id header required")
	}
	return sessionID, nil
}

// CheckoutLocationGet returns the session's selected location and the storefront policy.
func CheckoutLocationGet(svc checkoutlocation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, err := sessionFromRequest(r); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := checkoutLocationResponse{Policy: svc.Policy()}
		if loc, ok := checkoutlocation.LocationFromContext(ctx); ok {
			dto := toLocationDTO(*loc)
			resp.Location = &dto
		}
		responses.WriteSuccess(w, resp)
	}
}

type selectLocationRequest struct {
	LocationID uuid.UUID `json:"locationId" validate:"required"`
}

// CheckoutLocationSet stores the shopper's chosen location for the session.
func CheckoutLocationSet(svc checkoutlocation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, err := sessionFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body selectLocationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		loc, err := svc.SetSelected(ctx, sessionID, body.LocationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dto := toLocationDTO(*loc)
		responses.WriteSuccess(w, checkoutLocationResponse{Policy: svc.Policy(), Location: &dto})
	}
}

// CheckoutLocationClear forgets the session's selection.
func CheckoutLocationClear(svc checkoutlocation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, err := sessionFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.ClearSelected(ctx, sessionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type checkoutReserveRequest struct {
	ItemID     uuid.UUID  `json:"itemId" validate:"required"`
	LocationID *uuid.UUID `json:"locationId"`
	Quantity   int        `json:"quantity" validate:"gt=0"`
}

// CheckoutReserve reserves against the session's selected location. An explicit
// locationId is only honoured when the session has no selection and the policy
// does not require one.
func CheckoutReserve(checkout checkoutlocation.Service, svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, err := sessionFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body checkoutReserveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		loc, err := checkout.RequireForCheckout(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var locationID uuid.UUID
		switch {
		case loc != nil:
			if body.LocationID != nil && *body.LocationID != loc.ID {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "location differs from the session selection"))
				return
			}
			locationID = loc.ID
		case body.LocationID != nil && *body.LocationID != uuid.Nil:
			locationID = *body.LocationID
		default:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "location id is required").
				WithDetails(map[string]any{"field": "locationId"}))
			return
		}

		res, err := svc.Reserve(ctx, body.ItemID, locationID, body.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(res))
	}
}
