package jobs

import "context"

// Job represents a schedulable job that can be executed by the cron service
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns a human-readable name for the job
	Name() string

	// Schedule returns the cron schedule expression for this job
	// Examples: "*/5 * * * *", "@every 5m"
	Schedule() string
}

// JobManager manages and schedules periodic maintenance jobs
type JobManager interface {
	RegisterJob(job Job) error

	// Start begins executing all registered jobs according to their schedules
	Start()

	// Stop waits for running jobs to finish
	Stop()

	GetJobs() []Job
}
