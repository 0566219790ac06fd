// Package keeper keeps a browsershots request group alive by extending it on
// a fixed interval until the job page has nothing left to extend, then
// reports completion once.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/autoshots/core/pkg/logger"
)

// DefaultInterval sits below the remote idle expiry.
const DefaultInterval = 20 * time.Minute

// State of a run.
type State int

const (
	StateActive State = iota
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Target is the unit of work. URL is what the user submitted and what the
// callback reports; JobURL is the browsershots status page for it.
type Target struct {
	URL         string
	JobURL      string
	CallbackURL string
}

// SessionFactory builds the session a run uses for all of its cycles.
type SessionFactory func() (Session, error)

// Notifier reports a finished target.
type Notifier interface {
	NotifyDone(ctx context.Context, callbackURL, targetURL string) error
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Keeper struct {
	newSession SessionFactory
	notifier   Notifier
	interval   time.Duration
	sleep      Sleeper
	logger     *logger.Logger
}

type Option func(*Keeper)

func WithInterval(d time.Duration) Option {
	return func(k *Keeper) {
		if d > 0 {
			k.interval = d
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(k *Keeper) {
		if s != nil {
			k.sleep = s
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(k *Keeper) {
		if l != nil {
			k.logger = l
		}
	}
}

func New(newSession SessionFactory, notifier Notifier, opts ...Option) *Keeper {
	k := &Keeper{
		newSession: newSession,
		notifier:   notifier,
		interval:   DefaultInterval,
		sleep:      SleepContext,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Interval between cycles.
func (k *Keeper) Interval() time.Duration {
	return k.interval
}

// Run drives cycles until the job page reports nothing to extend, then
// notifies the callback exactly once. A cycle error ends the run without a
// notification. Cancelling ctx stops the run before the next cycle or during
// the wait; a cancelled run never notifies.
func (k *Keeper) Run(ctx context.Context, target Target) error {
	log := logger.FromContext(ctx, k.logger)

	session, err := k.newSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	cycle := NewCycle(session)

	log.Info().
		Str("action", "run_start").
		Str("job_url", target.JobURL).
		Dur("interval", k.interval).
		Msg("Starting session keeper run")

	state := StateActive
	cycles := 0
	start := time.Now()

	for state == StateActive {
		if err := ctx.Err(); err != nil {
			log.LogRunEnd("cancelled", cycles, time.Since(start), err)
			return err
		}

		cycles++
		cycleStart := time.Now()
		result, err := cycle.RunOnce(ctx, target.JobURL)
		if err != nil {
			log.LogRunEnd("failed", cycles, time.Since(start), err)
			return fmt.Errorf("cycle %d: %w", cycles, err)
		}
		log.LogCycle(cycles, result.RequestID(), result.IsDone(), time.Since(cycleStart))

		if result.IsDone() {
			state = StateFinished
			continue
		}

		if err := k.sleep(ctx, k.interval); err != nil {
			log.LogRunEnd("cancelled", cycles, time.Since(start), err)
			return err
		}
	}

	if err := k.notifier.NotifyDone(ctx, target.CallbackURL, target.URL); err != nil {
		log.Error().
			Err(err).
			Str("action", "callback_failed").
			Str("callback_url", target.CallbackURL).
			Msg("Failed to report completion")
		return fmt.Errorf("failed to report completion: %w", err)
	}

	log.LogRunEnd("complete", cycles, time.Since(start), nil)
	return nil
}

// SleepContext waits d unless ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
