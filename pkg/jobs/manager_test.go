package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autoshots/core/pkg/logger"
)

type mockJob struct {
	name        string
	schedule    string
	executeFunc func(ctx context.Context) error
	executed    chan struct{}
}

func newMockJob(name, schedule string) *mockJob {
	return &mockJob{name: name, schedule: schedule, executed: make(chan struct{}, 16)}
}

func (m *mockJob) Execute(ctx context.Context) error {
	select {
	case m.executed <- struct{}{}:
	default:
	}
	if m.executeFunc != nil {
		return m.executeFunc(ctx)
	}
	return nil
}

func (m *mockJob) Name() string {
	return m.name
}

func (m *mockJob) Schedule() string {
	return m.schedule
}

func (m *mockJob) waitExecuted(t *testing.T) {
	t.Helper()
	select {
	case <-m.executed:
	case <-time.After(3 * time.Second):
		t.Fatal("Job was not executed")
	}
}

func TestJobManager_RegisterJob(t *testing.T) {
	manager := NewJobManagerWithLogger(logger.Nop())

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{
			name:    "valid job",
			job:     newMockJob("test-job", "@every 1s"),
			wantErr: false,
		},
		{
			name:    "standard cron expression",
			job:     newMockJob("sweep", "*/5 * * * *"),
			wantErr: false,
		},
		{
			name:    "nil job",
			job:     nil,
			wantErr: true,
		},
		{
			name:    "invalid schedule",
			job:     newMockJob("invalid-job", "invalid-cron"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.RegisterJob(tt.job)
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterJob() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobManager_GetJobs(t *testing.T) {
	manager := NewJobManagerWithLogger(logger.Nop())

	if jobs := manager.GetJobs(); len(jobs) != 0 {
		t.Errorf("Expected 0 jobs initially, got %d", len(jobs))
	}

	if err := manager.RegisterJob(newMockJob("test-job", "@every 1s")); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}

	jobs := manager.GetJobs()
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Name() != "test-job" {
		t.Errorf("Expected job name 'test-job', got '%s'", jobs[0].Name())
	}
}

func TestJobManager_StartStop(t *testing.T) {
	manager := NewJobManagerWithLogger(logger.Nop())
	manager.Start()

	done := make(chan bool, 1)
	go func() {
		manager.Stop()
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() took too long")
	}
}

func TestJobExecution(t *testing.T) {
	manager := NewJobManagerWithLogger(logger.Nop())

	var sawLogger bool
	testJob := newMockJob("test-execution", "@every 1s")
	testJob.executeFunc = func(ctx context.Context) error {
		_, sawLogger = ctx.Value(logger.LoggerKey).(*logger.Logger)
		return nil
	}

	if err := manager.RegisterJob(testJob); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}

	manager.Start()
	testJob.waitExecuted(t)
	manager.Stop()

	if !sawLogger {
		t.Error("Expected job context to carry a logger")
	}
}

func TestJobExecutionError(t *testing.T) {
	manager := NewJobManagerWithLogger(logger.Nop())

	testJob := newMockJob("test-error", "@every 1s")
	testJob.executeFunc = func(ctx context.Context) error {
		return errors.New("test error")
	}

	if err := manager.RegisterJob(testJob); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}

	manager.Start()
	defer manager.Stop()

	// A failing job keeps its schedule
	testJob.waitExecuted(t)
	testJob.waitExecuted(t)
}
