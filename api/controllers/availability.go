package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	"github.com/angelmondragon/packfinderz-inventory/internal/availability"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/geo"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const defaultNearestRadiusKm = 25

// ItemLocations lists every active location that can currently sell the item.
func ItemLocations(resolver availability.Resolver, policy checkoutlocation.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, err := resolver.ListAvailableLocations(ctx, itemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]availabilityDTO, 0, len(entries))
		for _, entry := range entries {
			out = append(out, toAvailabilityDTO(entry, policy.ShowStockToCustomer))
		}
		responses.WriteSuccess(w, out)
	}
}

// ItemNearest lists in-stock locations within radiusKm of lat/lng, closest first.
func ItemNearest(resolver availability.Resolver, policy checkoutlocation.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		lat, err := validators.ParseQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		radius := float64(defaultNearestRadiusKm)
		if r.URL.Query().Has("radiusKm") {
			if radius, err = validators.ParseQueryFloat(r, "radiusKm"); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		entries, err := resolver.NearestWithStock(ctx, itemID, geo.Point{Lat: lat, Lng: lng}, radius)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]availabilityDTO, 0, len(entries))
		for _, entry := range entries {
			dto := toAvailabilityDTO(entry.LocationAvailability, policy.ShowStockToCustomer)
			distance := entry.DistanceKm
			dto.DistanceKm = &distance
			out = append(out, dto)
		}
		responses.WriteSuccess(w, out)
	}
}

type locationStockResponse struct {
	ItemID     string `json:"itemId"`
	LocationID string `json:"locationId"`
	InStock    bool   `json:"inStock"`
	Available  *int   `json:"available,omitempty"`
	Unbounded  bool   `json:"unbounded"`
}

// LocationAvailability answers whether one location can sell the item and how many.
func LocationAvailability(svc ledger.Service, policy checkoutlocation.Policy, logg *logger.Logger) http.HandlerFunc {
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

		inStock, err := svc.IsInStock(ctx, itemID, locationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		available, err := svc.GetAvailable(ctx, itemID, locationID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := locationStockResponse{
			ItemID:     itemID.String(),
			LocationID: locationID.String(),
			InStock:    inStock,
			Unbounded:  available == models.UnboundedQuantity,
		}
		if policy.ShowStockToCustomer && !resp.Unbounded {
			resp.Available = &available
		}
		responses.WriteSuccess(w, resp)
	}
}
