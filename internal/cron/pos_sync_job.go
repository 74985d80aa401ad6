package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/pos"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const defaultPOSSyncTimeout = 10 * time.Minute

type POSSyncJobParams struct {
	Logger  *logger.Logger
	Syncer  posSyncer
	Timeout time.Duration
}

type posSyncer interface {
	SyncAll(ctx context.Context) (*pos.RunSummary, error)
}

func NewPOSSyncJob(params POSSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("pos syncer required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultPOSSyncTimeout
	}
	return &posSyncJob{
		logg:    params.Logger,
		syncer:  params.Syncer,
		timeout: timeout,
	}, nil
}

type posSyncJob struct {
	logg    *logger.Logger
	syncer  posSyncer
	timeout time.Duration
}

func (j *posSyncJob) Name() string { return "pos-sync" }

func (j *posSyncJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	summary, err := j.syncer.SyncAll(ctx)
	if summary != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"locations":        summary.Locations,
			"locations_failed": summary.Failed,
			"synced_stock":     summary.Stock,
			"synced_prices":    summary.Prices,
			"line_errors":      summary.Errors,
		})
		j.logg.Info(logCtx, "pos sync pass complete")
	}
	if err != nil {
		return fmt.Errorf("pos sync: %w", err)
	}
	return nil
}
