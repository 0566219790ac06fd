package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autoshots/core/pkg/keeper"
	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/utils"
)

// ErrRunElsewhere is returned by Start when another instance holds the URL's lock.
var ErrRunElsewhere = errors.New("url is being kept alive by another instance")

// ErrSupervisorStopped is returned by Start after Stop.
var ErrSupervisorStopped = errors.New("supervisor stopped")

// Runner executes one keeper run. *keeper.Keeper implements it.
type Runner interface {
	Run(ctx context.Context, target keeper.Target) error
}

// RunInfo describes a live run.
type RunInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	JobURL    string    `json:"job_url"`
	StartedAt time.Time `json:"started_at"`
}

type run struct {
	info   RunInfo
	target keeper.Target
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the keeper runs of this process, at most one per URL.
// Runs are detached from the request that started them and end on their
// own, on restart of the same URL or on Stop.
type Supervisor struct {
	runner Runner
	locks  JobLockManager
	logger *logger.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc

	startMu sync.Mutex
	mu      sync.Mutex
	runs    map[string]*run
	stopped bool
	wg      sync.WaitGroup
}

type SupervisorOption func(*Supervisor)

// WithLockManager guards every run with a lock keyed on its URL.
func WithLockManager(locks JobLockManager) SupervisorOption {
	return func(s *Supervisor) {
		s.locks = locks
	}
}

func WithSupervisorLogger(l *logger.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSupervisor(runner Runner, opts ...SupervisorOption) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		runner:    runner,
		logger:    logger.Nop(),
		baseCtx:   ctx,
		cancelAll: cancel,
		runs:      make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches a run for target.URL and returns without waiting for it.
// A live run for the same URL is cancelled and awaited first, so re-adding a
// URL restarts its run. ctx bounds only the restart wait and the lock
// acquisition.
func (s *Supervisor) Start(ctx context.Context, target keeper.Target) (RunInfo, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return RunInfo{}, ErrSupervisorStopped
	}
	previous := s.runs[target.URL]
	s.mu.Unlock()

	if previous != nil {
		s.logger.Info().
			Str("action", "run_restart").
			Str("url", target.URL).
			Str("previous_run_id", previous.info.ID).
			Msg("Restarting keeper run")
		previous.cancel()
		select {
		case <-previous.done:
		case <-ctx.Done():
			return RunInfo{}, fmt.Errorf("waiting for previous run of %s: %w", target.URL, ctx.Err())
		}
	}

	var guard *LockGuard
	if s.locks != nil {
		guard = NewLockGuard(s.locks, target.URL, s.logger)
		acquired, err := guard.Acquire(ctx)
		if err != nil {
			return RunInfo{}, fmt.Errorf("failed to lock %s: %w", target.URL, err)
		}
		if !acquired {
			return RunInfo{}, ErrRunElsewhere
		}
	}

	r := &run{
		info: RunInfo{
			ID:        uuid.New().String(),
			Name:      utils.RunName(target.URL),
			URL:       target.URL,
			JobURL:    target.JobURL,
			StartedAt: time.Now().UTC(),
		},
		target: target,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		if guard != nil {
			_ = guard.Release(context.Background())
		}
		return RunInfo{}, ErrSupervisorStopped
	}
	var runCtx context.Context
	runCtx, r.cancel = context.WithCancel(s.baseCtx)
	s.runs[target.URL] = r
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(runCtx, r, guard)

	return r.info, nil
}

func (s *Supervisor) execute(ctx context.Context, r *run, guard *LockGuard) {
	defer s.wg.Done()
	defer close(r.done)
	defer r.cancel()

	log := s.logger.WithRun(r.info.ID, r.info.Name, r.info.URL)
	ctx = log.ToContext(ctx)
	log.Info().Str("action", "run_spawned").Str("job_url", r.target.JobURL).Msg("Keeper run spawned")

	err := s.runner.Run(ctx, r.target)
	switch {
	case err == nil:
		log.Info().Str("action", "run_exited").Msg("Keeper run reported completion")
	case errors.Is(err, context.Canceled):
		log.Info().Str("action", "run_exited").Msg("Keeper run cancelled")
	default:
		log.Error().
			Err(err).
			Str("action", "run_exited").
			Msg("Keeper run failed, completion will not be reported")
	}

	s.mu.Lock()
	if s.runs[r.info.URL] == r {
		delete(s.runs, r.info.URL)
	}
	s.mu.Unlock()

	if guard != nil {
		if err := guard.Release(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to release run lock")
		}
	}
}

// Cancel stops the live run for url, if any, and waits for it to exit.
func (s *Supervisor) Cancel(ctx context.Context, url string) bool {
	s.mu.Lock()
	r := s.runs[url]
	s.mu.Unlock()
	if r == nil {
		return false
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	return true
}

// IsActive reports whether this process has a live run for url.
func (s *Supervisor) IsActive(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[url]
	return ok
}

// Active lists the URLs with a live run, sorted.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	urls := make([]string, 0, len(s.runs))
	for url := range s.runs {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Runs returns details of the live runs, oldest first.
func (s *Supervisor) Runs() []RunInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]RunInfo, 0, len(s.runs))
	for _, r := range s.runs {
		infos = append(infos, r.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Stop cancels every run and waits for them to exit. Start fails afterwards.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancelAll()
	s.wg.Wait()
}
