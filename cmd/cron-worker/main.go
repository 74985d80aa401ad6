package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-inventory/internal/catalog"
	"github.com/angelmondragon/packfinderz-inventory/internal/cron"
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

const (
	lockKeyFormat          = "pf:cron-worker:lock:%s"
	movementRetentionEvery = 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	locationService, err := locations.NewService(locations.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create locations service", err)
		os.Exit(1)
	}

	// POS snapshots feed stock events only; pushing them back would echo the POS.
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
	}

	ledgerOpts := ledger.Options{
		ConflictRetries: cfg.Inventory.ConflictRetries,
		ConflictBackoff: cfg.Inventory.ConflictBackoff,
		Metrics:         metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
	}
	if stockEvents != nil {
		ledgerOpts.Notifier = stockEvents
	}
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerService, err := ledger.NewService(dbClient, ledgerRepo, logg, ledgerOpts)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	syncer, err := pos.NewSyncer(pos.SyncerParams{
		Registry: pos.NewDefaultRegistry(
			pos.NewConfigCredentials(cfg),
			logg,
			&http.Client{Timeout: cfg.POS.RequestTimeout},
		),
		Ledger:    ledgerService,
		Catalog:   catalog.NewRepository(dbClient.DB()),
		Locations: locationService,
		Logger:    logg,
		Metrics:   metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
		Policy: pos.CallPolicy{
			Timeout:    cfg.POS.RequestTimeout,
			MaxRetries: cfg.POS.MaxRetries,
			Backoff:    cfg.POS.RetryBackoff,
		},
		Concurrency: cfg.POS.Concurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pos syncer", err)
		os.Exit(1)
	}

	posSyncJob, err := cron.NewPOSSyncJob(cron.POSSyncJobParams{
		Logger:  logg,
		Syncer:  syncer,
		Timeout: cfg.POS.SyncTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pos sync job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewMovementRetentionJob(cron.MovementRetentionJobParams{
		Logger:     logg,
		Repository: ledgerRepo,
		Retention:  cfg.Inventory.MovementRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create movement retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(posSyncJob)
	registry.Every(retentionJob, movementRetentionEvery)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.POS.SyncInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	if stockEvents != nil {
		stockEvents.Wait()
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
