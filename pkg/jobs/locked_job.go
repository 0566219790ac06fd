package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autoshots/core/pkg/logger"
)

// LockedJob runs a scheduled job on only one instance at a time. Instances
// that cannot take the lock skip the tick.
type LockedJob struct {
	job         Job
	lockManager JobLockManager
	lockTimeout time.Duration
	logger      *logger.Logger
}

// NewLockedJob wraps job. A zero lockTimeout tries the lock once.
func NewLockedJob(job Job, lockManager JobLockManager, lockTimeout time.Duration, log *logger.Logger) *LockedJob {
	if log == nil {
		log = logger.Nop()
	}
	return &LockedJob{
		job:         job,
		lockManager: lockManager,
		lockTimeout: lockTimeout,
		logger:      log,
	}
}

func (l *LockedJob) Name() string {
	return l.job.Name()
}

func (l *LockedJob) Schedule() string {
	return l.job.Schedule()
}

func (l *LockedJob) lockKey() string {
	return "job:" + l.job.Name()
}

func (l *LockedJob) Execute(ctx context.Context) error {
	jobName := l.job.Name()
	guard := NewLockGuard(l.lockManager, l.lockKey(), l.logger)

	var acquired bool
	var err error
	if l.lockTimeout > 0 {
		acquired, err = guard.AcquireWithTimeout(ctx, l.lockTimeout)
		if errors.Is(err, context.DeadlineExceeded) {
			acquired, err = false, nil
		}
	} else {
		acquired, err = guard.Acquire(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	if !acquired {
		l.logger.Info().
			Str("job_name", jobName).
			Str("action", "job_skipped_locked").
			Msg("Job skipped, another instance is running it")
		return nil
	}

	defer func() {
		if err := guard.Release(context.Background()); err != nil {
			l.logger.Error().
				Err(err).
				Str("job_name", jobName).
				Str("action", "lock_release_error").
				Msg("Failed to release job lock")
		}
	}()

	return l.job.Execute(ctx)
}
