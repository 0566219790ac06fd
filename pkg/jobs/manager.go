package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/autoshots/core/pkg/logger"
)

// DefaultJobTimeout bounds one scheduled execution.
const DefaultJobTimeout = 5 * time.Minute

type cronJobManager struct {
	cron    *cron.Cron
	mu      sync.Mutex
	jobs    []Job
	timeout time.Duration
	logger  *logger.Logger
}

// NewJobManager creates a new job manager. Overlapping executions of the
// same job are skipped.
func NewJobManager() JobManager {
	return NewJobManagerWithLogger(logger.New("job-manager"))
}

func NewJobManagerWithLogger(log *logger.Logger) JobManager {
	if log == nil {
		log = logger.Nop()
	}
	return &cronJobManager{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs:    make([]Job, 0),
		timeout: DefaultJobTimeout,
		logger:  log,
	}
}

func (m *cronJobManager) RegisterJob(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	m.logger.Info().
		Str("job_name", job.Name()).
		Str("schedule", job.Schedule()).
		Msg("Registering job")

	_, err := m.cron.AddFunc(job.Schedule(), func() {
		m.run(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return nil
}

func (m *cronJobManager) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	log := m.logger.WithJob(job.Name())
	ctx = log.ToContext(ctx)
	log.LogJobStart(job.Name(), job.Schedule())
	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		log.Error().
			Err(err).
			Str("action", "job_failed").
			Dur("duration", time.Since(start)).
			Msg("Job execution failed")
		return
	}

	log.Info().
		Str("action", "job_finished").
		Dur("duration", time.Since(start)).
		Msg("Job completed successfully")
}

func (m *cronJobManager) Start() {
	m.logger.Info().Int("job_count", len(m.GetJobs())).Msg("Starting job manager")
	m.cron.Start()
}

func (m *cronJobManager) Stop() {
	m.logger.Info().Msg("Stopping job manager")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info().Msg("Job manager stopped")
}

func (m *cronJobManager) GetJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Job(nil), m.jobs...)
}
