package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-inventory/api/controllers"
	"github.com/angelmondragon/packfinderz-inventory/api/middleware"
	"github.com/angelmondragon/packfinderz-inventory/internal/availability"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/internal/pos"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ledgerService ledger.Service,
	resolver availability.Resolver,
	checkoutService checkoutlocation.Service,
	syncer pos.Syncer,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// Redis-backed middleware is skipped when no client is wired.
	passthrough := func(next http.Handler) http.Handler { return next }
	idempotency, reserveLimit, syncLimit := passthrough, passthrough, passthrough
	if redisClient != nil {
		idempotency = middleware.Idempotency(redisClient, logg)
		reserveLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("reserve", cfg.RateLimit.Window, cfg.RateLimit.ReserveLimit),
			redisClient,
			logg,
		)
		syncLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("pos_sync", cfg.RateLimit.Window, cfg.RateLimit.SyncLimit),
			redisClient,
			logg,
		)
	}

	pingers := map[string]controllers.Pinger{}
	if dbP != nil {
		pingers["database"] = dbP
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	policy := checkoutService.Policy()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CheckoutSession(checkoutService, logg))

		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Get("/locations", controllers.ItemLocations(resolver, policy, logg))
			r.Get("/nearest", controllers.ItemNearest(resolver, policy, logg))
			r.Get("/locations/{locationId}/availability", controllers.LocationAvailability(ledgerService, policy, logg))
		})

		// the only storefront mutation; it is bound to the session's location
		r.With(reserveLimit, idempotency).
			Post("/checkout/reserve", controllers.CheckoutReserve(checkoutService, ledgerService, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRolePOS),
				reserveLimit,
				idempotency,
			)
			r.Post("/inventory/reserve", controllers.InventoryReserve(ledgerService, logg))
			r.Post("/inventory/release", controllers.InventoryRelease(ledgerService, logg))
			r.Post("/inventory/fulfill", controllers.InventoryFulfill(ledgerService, logg))
			r.Post("/inventory/replenish", controllers.InventoryReplenish(ledgerService, logg))
		})

		r.Get("/checkout/location", controllers.CheckoutLocationGet(checkoutService, logg))
		r.Put("/checkout/location", controllers.CheckoutLocationSet(checkoutService, logg))
		r.Delete("/checkout/location", controllers.CheckoutLocationClear(checkoutService, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireRole(logg, enums.OperatorRoleAdmin),
				idempotency,
			)
			r.Put("/inventory/records", controllers.InventoryEnsureRecord(ledgerService, logg))
			r.Get("/inventory/records/{itemId}/{locationId}/movements", controllers.InventoryMovements(ledgerService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRolePOS),
				syncLimit,
				idempotency,
			)
			r.Post("/pos/locations/{locationId}/sync", controllers.POSSyncLocation(syncer, logg))
		})
	})

	return r
}
