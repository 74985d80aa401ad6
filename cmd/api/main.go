package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-inventory/api/routes"
	"github.com/angelmondragon/packfinderz-inventory/internal/availability"
	"github.com/angelmondragon/packfinderz-inventory/internal/catalog"
	"github.com/angelmondragon/packfinderz-inventory/internal/checkoutlocation"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/internal/locations"
	"github.com/angelmondragon/packfinderz-inventory/internal/pos"
	"github.com/angelmondragon/packfinderz-inventory/internal/stockevents"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/instance"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
	"github.com/angelmondragon/packfinderz-inventory/pkg/pubsub"
	"github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if pool, err := dbClient.SQL(); err == nil {
		registry.MustRegister(collectors.NewDBStatsCollector(pool, "inventory"))
	}

	locationService, err := locations.NewService(locations.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create locations service", err)
		os.Exit(1)
	}

	callPolicy := pos.CallPolicy{
		Timeout:    cfg.POS.RequestTimeout,
		MaxRetries: cfg.POS.MaxRetries,
		Backoff:    cfg.POS.RetryBackoff,
	}
	posRegistry := pos.NewDefaultRegistry(
		pos.NewConfigCredentials(cfg),
		logg,
		&http.Client{Timeout: cfg.POS.RequestTimeout},
	)
	pusher, err := pos.NewPusher(posRegistry, locationService, logg, callPolicy)
	if err != nil {
		logg.Error(context.Background(), "failed to create pos pusher", err)
		os.Exit(1)
	}

	notifiers := []ledger.QuantityNotifier{pusher}
	var stockEvents *stockevents.Publisher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		stockEvents, err = stockevents.NewPublisher(pubsubClient.StockEventsPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stock events publisher", err)
			os.Exit(1)
		}
		notifiers = append(notifiers, stockEvents)
	} else {
		logg.Info(context.Background(), "stock event publishing disabled")
	}

	ledgerService, err := ledger.NewService(dbClient, ledger.NewRepository(dbClient.DB()), logg, ledger.Options{
		ConflictRetries: cfg.Inventory.ConflictRetries,
		ConflictBackoff: cfg.Inventory.ConflictBackoff,
		Metrics:         metrics.NewLedgerMetrics(registry),
		Notifier:        ledger.Notifiers(notifiers...),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	resolver, err := availability.NewResolver(availability.NewRepository(dbClient.DB()), catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability resolver", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutlocation.NewService(
		redisClient,
		locationService,
		checkoutlocation.PolicyFromConfig(cfg.Checkout),
		cfg.Checkout.SessionTTL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout location service", err)
		os.Exit(1)
	}

	syncer, err := pos.NewSyncer(pos.SyncerParams{
		Registry:    posRegistry,
		Ledger:      ledgerService,
		Catalog:     catalogRepo,
		Locations:   locationService,
		Logger:      logg,
		Metrics:     metrics.NewSyncMetrics(registry),
		Policy:      callPolicy,
		Concurrency: cfg.POS.Concurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pos syncer", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ledgerService,
			resolver,
			checkoutService,
			syncer,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}

	pusher.Wait()
	if stockEvents != nil {
		stockEvents.Wait()
	}
	logg.Info(context.WithoutCancel(ctx), "api server shut down gracefully")
}
