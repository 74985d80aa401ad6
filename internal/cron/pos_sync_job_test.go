package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/internal/pos"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type fakeSyncer struct {
	summary  *pos.RunSummary
	err      error
	deadline bool
}

func (f *fakeSyncer) SyncAll(ctx context.Context) (*pos.RunSummary, error) {
	_, f.deadline = ctx.Deadline()
	return f.summary, f.err
}

func newPOSSyncJob(t *testing.T, syncer posSyncer) Job {
	t.Helper()
	job, err := NewPOSSyncJob(POSSyncJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Syncer:  syncer,
		Timeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewPOSSyncJob: %v", err)
	}
	return job
}

func TestPOSSyncJobRunsWithDeadline(t *testing.T) {
	syncer := &fakeSyncer{summary: &pos.RunSummary{Locations: 2, Stock: 5}}
	job := newPOSSyncJob(t, syncer)
	if job.Name() != "pos-sync" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !syncer.deadline {
		t.Fatal("expected sync to run under a deadline")
	}
}

func TestPOSSyncJobReportsSkippedLocations(t *testing.T) {
	cause := errors.New("location x: misconfigured")
	job := newPOSSyncJob(t, &fakeSyncer{summary: &pos.RunSummary{Locations: 1, Failed: 1}, err: cause})
	err := job.Run(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNewPOSSyncJobRequiresSyncer(t *testing.T) {
	if _, err := NewPOSSyncJob(POSSyncJobParams{Logger: logger.New(logger.Options{Output: io.Discard})}); err == nil {
		t.Fatal("expected error")
	}
}
