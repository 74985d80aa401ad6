package cron

import (
	"context"
	"time"
)

// Job is one unit of scheduled stock maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their own cadence. A zero cadence means the job
// runs on every scheduler cycle.
type Registry struct {
	entries []*entry
}

// NewRegistry registers jobs that run every cycle.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Every(job, 0)
	}
	return r
}

// Every registers job to run at most once per every. Nil jobs are ignored.
func (r *Registry) Every(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.entries = append(r.entries, &entry{job: job, every: every})
}

// Jobs lists registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// due returns the jobs whose cadence has elapsed at now and marks them run.
func (r *Registry) due(now time.Time) []Job {
	var jobs []Job
	for _, e := range r.entries {
		if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.every {
			continue
		}
		e.lastRun = now
		jobs = append(jobs, e.job)
	}
	return jobs
}
