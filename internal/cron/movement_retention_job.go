package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const movementRetentionDays = 90

type MovementRetentionJobParams struct {
	Logger     *logger.Logger
	Repository movementRetentionRepo
	Retention  int
}

type movementRetentionRepo interface {
	DeleteMovementsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewMovementRetentionJob(params MovementRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = movementRetentionDays
	}
	return &movementRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type movementRetentionJob struct {
	logg      *logger.Logger
	repo      movementRetentionRepo
	retention int
	now       func() time.Time
}

func (j *movementRetentionJob) Name() string { return "movement-retention" }

func (j *movementRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteMovementsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("movement retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "stock movement retention cleanup complete")
	return nil
}
