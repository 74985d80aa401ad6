package availability

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type itemLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

// Resolver answers which locations can sell an item. It never mutates state.
type Resolver interface {
	ListAvailableLocations(ctx context.Context, itemID uuid.UUID) ([]LocationAvailability, error)
	NearestWithStock(ctx context.Context, itemID uuid.UUID, origin geo.Point, radiusKm float64) ([]NearbyLocation, error)
}

// LocationAvailability is one active location that can sell the item.
type LocationAvailability struct {
	Location       models.Location `json:"location"`
	Available      int             `json:"available"`
	Unbounded      bool            `json:"unbounded"`
	Backorderable  bool            `json:"backorderable"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
}

// NearbyLocation adds the great-circle distance from the caller.
type NearbyLocation struct {
	LocationAvailability
	DistanceKm float64 `json:"distanceKm"`
}

type resolver struct {
	repo  Repository
	items itemLoader
}

// NewResolver builds the availability resolver.
func NewResolver(repo Repository, items itemLoader) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	return &resolver{repo: repo, items: items}, nil
}

// ListAvailableLocations returns active in-stock locations ordered by location id.
func (r *resolver) ListAvailableLocations(ctx context.Context, itemID uuid.UUID) ([]LocationAvailability, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := r.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	records, err := r.repo.ListRecordsForItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock records")
	}
	inStock := make(map[uuid.UUID]models.StockRecord, len(records))
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		if !record.InStock() {
			continue
		}
		inStock[record.LocationID] = record
		ids = append(ids, record.LocationID)
	}

	locations, err := r.repo.ListActiveLocations(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}

	result := make([]LocationAvailability, 0, len(locations))
	for _, location := range locations {
		record, ok := inStock[location.ID]
		if !ok {
			continue
		}
		result = append(result, LocationAvailability{
			Location:       location,
			Available:      record.AvailableQuantity(),
			Unbounded:      !record.TrackStock,
			Backorderable:  record.TrackStock && record.AllowBackorder,
			EffectivePrice: record.EffectivePrice(item.BasePrice),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Location.ID.String() < result[j].Location.ID.String()
	})
	return result, nil
}

// NearestWithStock ranks in-stock locations within radiusKm of origin by distance.
// Locations without coordinates are skipped. Equal distances are ordered by location id.
func (r *resolver) NearestWithStock(ctx context.Context, itemID uuid.UUID, origin geo.Point, radiusKm float64) ([]NearbyLocation, error) {
	if err := origin.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if !(radiusKm > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "radius must be greater than zero")
	}

	available, err := r.ListAvailableLocations(ctx, itemID)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyLocation, 0, len(available))
	for _, entry := range available {
		if !entry.Location.HasCoordinates() {
			continue
		}
		distance := geo.DistanceKm(origin, geo.Point{Lat: *entry.Location.Latitude, Lng: *entry.Location.Longitude})
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, NearbyLocation{LocationAvailability: entry, DistanceKm: distance})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm != nearby[j].DistanceKm {
			return nearby[i].DistanceKm < nearby[j].DistanceKm
		}
		return nearby[i].Location.ID.String() < nearby[j].Location.ID.String()
	})
	return nearby, nil
}
