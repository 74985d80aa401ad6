package checkoutlocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-inventory/internal/locations"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const defaultSessionTTL = 72 * time.Hour

// Store persists the per-session selection.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CheckoutLocationKey(sessionID string) string
}

// Policy holds the customer-facing selection flags.
type Policy struct {
	SelectionEnabled    bool `json:"selectionEnabled"`
	SelectionRequired   bool `json:"selectionRequired"`
	ShowStockToCustomer bool `json:"showStockToCustomer"`
}

// PolicyFromConfig maps the checkout config onto a Policy.
func PolicyFromConfig(cfg config.CheckoutConfig) Policy {
	return Policy{
		SelectionEnabled:    cfg.LocationSelectionEnabled,
		SelectionRequired:   cfg.LocationSelectionEnabled && cfg.LocationSelectionRequired,
		ShowStockToCustomer: cfg.ShowStockToCustomer,
	}
}

// Service manages which location a checkout session fulfils from.
type Service interface {
	Policy() Policy
	GetSelected(ctx context.Context, sessionID string) (*models.Location, error)
	SetSelected(ctx context.Context, sessionID string, locationID uuid.UUID) (*models.Location, error)
	ClearSelected(ctx context.Context, sessionID string) error
	// RequireForCheckout must be called before reserving stock for a session.
	RequireForCheckout(ctx context.Context, sessionID string) (*models.Location, error)
}

type service struct {
	store     Store
	locations locations.Service
	policy    Policy
	ttl       time.Duration
	logg      *logger.Logger
}

// NewService validates dependencies and returns a Service.
func NewService(store Store, locs locations.Service, policy Policy, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("selection store required")
	}
	if locs == nil {
		return nil, fmt.Errorf("locations service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &service{store: store, locations: locs, policy: policy, ttl: ttl, logg: logg}, nil
}

func (s *service) Policy() Policy {
	return s.policy
}

func (s *service) GetSelected(ctx context.Context, sessionID string) (*models.Location, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout location")
	}

	locationID, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		s.forget(ctx, key, sessionID, "checkout_location.invalid_selection")
		return nil, nil
	}
	location, err := s.locations.Get(ctx, locationID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.forget(ctx, key, sessionID, "checkout_location.location_removed")
			return nil, nil
		}
		return nil, err
	}
	if !location.Active {
		s.forget(ctx, key, sessionID, "checkout_location.location_inactive")
		return nil, nil
	}
	return location, nil
}

func (s *service) SetSelected(ctx context.Context, sessionID string, locationID uuid.UUID) (*models.Location, error) {
	if !s.policy.SelectionEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "location selection is disabled")
	}
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}
	if locationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id is required")
	}

	location, err := s.locations.GetActive(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key, location.ID.String(), s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout location")
	}

	logCtx := s.logg.WithLocationID(s.logg.WithSessionID(ctx, sessionID), location.ID.String())
	s.logg.Info(logCtx, "checkout_location.selected")
	return location, nil
}

func (s *service) ClearSelected(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	if err := s.store.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear checkout location")
	}
	return nil
}

func (s *service) RequireForCheckout(ctx context.Context, sessionID string) (*models.Location, error) {
	location, err := s.GetSelected(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if location == nil && s.policy.SelectionRequired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "location selection required")
	}
	return location, nil
}

func (s *service) key(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.store.CheckoutLocationKey(sessionID), nil
}

func (s *service) forget(ctx context.Context, key, sessionID, event string) {
	ctx = s.logg.WithSessionID(ctx, sessionID)
	if err := s.store.Del(ctx, key); err != nil {
		s.logg.Error(ctx, event, err)
		return
	}
	s.logg.Warn(ctx, event)
}
