package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry := NewRegistry(jobA, nil)
	registry.Every(jobB, time.Hour)

	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}

func TestRegistryDueHonoursCadence(t *testing.T) {
	sync := &stubJob{name: "pos-sync"}
	retention := &stubJob{name: "movement-retention"}
	registry := NewRegistry(sync)
	registry.Every(retention, 24*time.Hour)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := registry.due(start); len(got) != 2 {
		t.Fatalf("first cycle should run everything, got %d", len(got))
	}
	if got := registry.due(start.Add(15 * time.Minute)); len(got) != 1 || got[0] != sync {
		t.Fatalf("retention should wait for its cadence, got %v", got)
	}
	if got := registry.due(start.Add(24 * time.Hour)); len(got) != 2 {
		t.Fatalf("retention should be due after a day, got %d", len(got))
	}
}
