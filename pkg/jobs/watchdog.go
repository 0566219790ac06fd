package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autoshots/core/pkg/database"
	"github.com/autoshots/core/pkg/logger"
)

// Registry is the part of the job registry the sweep needs.
type Registry interface {
	ListJobs(ctx context.Context, running bool) ([]database.Job, error)
	MarkJobDone(ctx context.Context, url string) (database.Job, error)
}

// ActiveChecker reports live runs. *Supervisor implements it.
type ActiveChecker interface {
	IsActive(url string) bool
}

// StaleRunSweepJob finds registry jobs still marked running that no keeper
// run is serving, which is what a failed or lost run leaves behind. A job
// must be stale on two consecutive sweeps before it is acted on, so a URL
// caught between registry update and run start is not touched.
type StaleRunSweepJob struct {
	registry Registry
	active   ActiveChecker
	locks    JobLockManager
	schedule string
	markDone bool

	mu      sync.Mutex
	suspect map[string]bool
}

// NewStaleRunSweepJob builds the sweep. locks may be nil; when set, a URL
// locked by any instance counts as served.
func NewStaleRunSweepJob(registry Registry, active ActiveChecker, locks JobLockManager, schedule string, markDone bool) *StaleRunSweepJob {
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &StaleRunSweepJob{
		registry: registry,
		active:   active,
		locks:    locks,
		schedule: schedule,
		markDone: markDone,
		suspect:  make(map[string]bool),
	}
}

func (j *StaleRunSweepJob) Name() string {
	return "stale_run_sweep"
}

func (j *StaleRunSweepJob) Schedule() string {
	return j.schedule
}

// Execute runs one sweep.
func (j *StaleRunSweepJob) Execute(ctx context.Context) error {
	log := logger.WithContext(ctx, "stale-run-sweep")
	start := time.Now()

	running, err := j.registry.ListJobs(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list running jobs: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	next := make(map[string]bool)
	stale, closed, errCount := 0, 0, 0

	for _, job := range running {
		served, err := j.served(ctx, job.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", job.URL).Msg("Could not check run lock")
			errCount++
			continue
		}
		if served {
			continue
		}

		if !j.suspect[job.URL] {
			next[job.URL] = true
			continue
		}

		stale++
		log.Warn().
			Str("action", "stale_run").
			Str("url", job.URL).
			Time("created_at", job.CreatedAt).
			Msg("Job marked running but no keeper run serves it")

		if !j.markDone {
			next[job.URL] = true
			continue
		}
		if _, err := j.registry.MarkJobDone(ctx, job.URL); err != nil {
			log.Error().Err(err).Str("url", job.URL).Msg("Failed to close stale job")
			errCount++
			next[job.URL] = true
			continue
		}
		closed++
	}

	j.suspect = next
	log.LogJobComplete(j.Name(), time.Since(start), len(running), errCount)
	log.Info().
		Int("stale", stale).
		Int("closed", closed).
		Int("suspect", len(next)).
		Msg("Stale run sweep finished")
	return nil
}

func (j *StaleRunSweepJob) served(ctx context.Context, url string) (bool, error) {
	if j.active.IsActive(url) {
		return true, nil
	}
	if j.locks == nil {
		return false, nil
	}
	return j.locks.IsLocked(ctx, url)
}
