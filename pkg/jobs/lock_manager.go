package jobs

import (
	"context"
	"crypto/md5"
	"fmt"
	"sync"
	"time"

	"github.com/autoshots/core/pkg/database"
	"github.com/autoshots/core/pkg/logger"
)

// lockNamespace keeps run lock ids apart from other advisory lock users of
// the same database.
const lockNamespace = "autoshots-run:"

// JobLockManager provides cross-process locking keyed on a string
type JobLockManager interface {
	// AcquireLock returns false if another holder has the key
	AcquireLock(ctx context.Context, key string) (bool, error)

	ReleaseLock(ctx context.Context, key string) error

	IsLocked(ctx context.Context, key string) (bool, error)

	// AcquireLockWithTimeout polls until the key is free or timeout passes
	AcquireLockWithTimeout(ctx context.Context, key string, timeout time.Duration) (bool, error)
}

// PostgreSQLLockManager implements locking with PostgreSQL advisory locks.
//
// Advisory locks belong to a database session, so db must be a single
// dedicated connection (not a pool) that stays open while locks are held.
// Calls are serialized because a pgx connection is not safe for concurrent
// use. Advisory locks are re-entrant per session, so keys held by this
// manager are tracked locally and a second acquire from the same process
// reports the key as taken.
type PostgreSQLLockManager struct {
	mu     sync.Mutex
	db     database.DBTX
	held   map[int64]bool
	logger *logger.Logger
}

// NewPostgreSQLLockManager creates a new PostgreSQL-based lock manager
func NewPostgreSQLLockManager(db database.DBTX, log *logger.Logger) JobLockManager {
	if log == nil {
		log = logger.Nop()
	}
	return &PostgreSQLLockManager{
		db:     db,
		held:   make(map[int64]bool),
		logger: log,
	}
}

// generateLockID derives a stable int64 advisory lock key
func (p *PostgreSQLLockManager) generateLockID(key string) int64 {
	hash := md5.Sum([]byte(lockNamespace + key))

	lockID := int64(0)
	for i := 0; i < 8; i++ {
		lockID = lockID<<8 + int64(hash[i])
	}

	if lockID < 0 {
		lockID = -lockID
	}

	return lockID
}

func (p *PostgreSQLLockManager) AcquireLock(ctx context.Context, key string) (bool, error) {
	lockID := p.generateLockID(key)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.held[lockID] {
		p.logger.Debug().
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "lock_already_held").
			Msg("Lock already held by this instance")
		return false, nil
	}

	var acquired bool
	err := p.db.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "acquire_lock_failed").
			Msg("Failed to acquire advisory lock")
		return false, fmt.Errorf("failed to acquire lock for %s: %w", key, err)
	}

	if acquired {
		p.held[lockID] = true
		p.logger.Debug().
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "lock_acquired").
			Msg("Acquired advisory lock")
	} else {
		p.logger.Info().
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "lock_held_elsewhere").
			Msg("Lock held by another instance")
	}

	return acquired, nil
}

func (p *PostgreSQLLockManager) ReleaseLock(ctx context.Context, key string) error {
	lockID := p.generateLockID(key)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.held[lockID] {
		p.logger.Warn().
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "lock_not_held").
			Msg("Attempted to release lock that was not held")
		return nil
	}

	var released bool
	err := p.db.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "release_lock_failed").
			Msg("Failed to release advisory lock")
		return fmt.Errorf("failed to release lock for %s: %w", key, err)
	}
	delete(p.held, lockID)

	if !released {
		p.logger.Warn().
			Str("lock_key", key).
			Int64("lock_id", lockID).
			Str("action", "lock_lost").
			Msg("Database no longer held the advisory lock")
	}

	return nil
}

func (p *PostgreSQLLockManager) IsLocked(ctx context.Context, key string) (bool, error) {
	lockID := p.generateLockID(key)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.held[lockID] {
		return true, nil
	}

	var canAcquire bool
	err := p.db.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&canAcquire)
	if err != nil {
		return false, fmt.Errorf("failed to check lock status for %s: %w", key, err)
	}

	if canAcquire {
		if _, err := p.db.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			p.logger.Warn().
				Err(err).
				Str("lock_key", key).
				Msg("Failed to release lock after check")
		}
		return false, nil
	}

	return true, nil
}

func (p *PostgreSQLLockManager) AcquireLockWithTimeout(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	acquired, err := p.AcquireLock(ctx, key)
	if err != nil {
		return false, err
	}
	if acquired {
		return true, nil
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().
				Str("lock_key", key).
				Dur("timeout", timeout).
				Str("action", "lock_wait_timeout").
				Msg("Lock acquisition timed out")
			return false, ctx.Err()
		case <-ticker.C:
			acquired, err := p.AcquireLock(ctx, key)
			if err != nil {
				return false, err
			}
			if acquired {
				return true, nil
			}
		}
	}
}

// LockGuard ties one key to one holder so release can be deferred
type LockGuard struct {
	lockManager JobLockManager
	key         string
	acquired    bool
	logger      *logger.Logger
}

func NewLockGuard(lockManager JobLockManager, key string, log *logger.Logger) *LockGuard {
	if log == nil {
		log = logger.Nop()
	}
	return &LockGuard{
		lockManager: lockManager,
		key:         key,
		logger:      log,
	}
}

func (lg *LockGuard) Acquire(ctx context.Context) (bool, error) {
	acquired, err := lg.lockManager.AcquireLock(ctx, lg.key)
	if err != nil {
		return false, err
	}
	lg.acquired = acquired
	return acquired, nil
}

func (lg *LockGuard) AcquireWithTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	acquired, err := lg.lockManager.AcquireLockWithTimeout(ctx, lg.key, timeout)
	if err != nil {
		return false, err
	}
	lg.acquired = acquired
	return acquired, nil
}

// Release is a no-op unless Acquire succeeded
func (lg *LockGuard) Release(ctx context.Context) error {
	if !lg.acquired {
		return nil
	}

	if err := lg.lockManager.ReleaseLock(ctx, lg.key); err != nil {
		lg.logger.Error().
			Err(err).
			Str("lock_key", lg.key).
			Msg("Failed to release lock in guard")
		return err
	}

	lg.acquired = false
	return nil
}

func (lg *LockGuard) IsAcquired() bool {
	return lg.acquired
}
