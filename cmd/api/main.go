package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autoshots/core/internal/config"
	"github.com/autoshots/core/pkg/browsershots"
	"github.com/autoshots/core/pkg/database"
	"github.com/autoshots/core/pkg/database/pool"
	"github.com/autoshots/core/pkg/jobs"
	"github.com/autoshots/core/pkg/keeper"
	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/server"
)

func main() {
	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("autoshots-api")

	cfg := config.Load()
	ctx := context.Background()

	dbPool, err := connectWithRetry(ctx, cfg.DatabaseURL(), log)
	if err != nil {
		log.Fatal().Err(err).Str("action", "db_connect_failed").Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	queries := database.New(dbPool)
	if err := queries.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Str("action", "schema_failed").Msg("Failed to prepare jobs table")
	}

	// Remote session per run
	creds := browsershots.Credentials{Username: cfg.Remote.Username, Password: cfg.Remote.Password}
	if creds.Username == "" {
		log.Warn().Msg("BROWSERSHOTS_USERNAME is empty, every login will be rejected")
	}
	remote := browsershots.DefaultConfig(cfg.Remote.BaseURL, creds)
	remote.Timeout = cfg.RemoteTimeout()

	remoteLog := log.With().Str("component", "browsershots").Logger()
	newSession := func() (keeper.Session, error) {
		return browsershots.NewClient(remote, &logger.Logger{Logger: &remoteLog})
	}

	notifier := keeper.NewHTTPNotifier(&http.Client{Timeout: 30 * time.Second}, log)
	k := keeper.New(newSession, notifier,
		keeper.WithInterval(cfg.Keeper.Interval),
		keeper.WithLogger(log),
	)

	supervisorOpts := []jobs.SupervisorOption{jobs.WithSupervisorLogger(log)}
	var locks jobs.JobLockManager
	if cfg.Keeper.EnableLocking {
		// Advisory locks live on one session, so they get their own connection
		lockConn, err := pgx.Connect(ctx, cfg.DatabaseURL())
		if err != nil {
			log.Fatal().Err(err).Str("action", "lock_conn_failed").Msg("Failed to open lock connection")
		}
		defer func() { _ = lockConn.Close(context.Background()) }()

		locks = jobs.NewPostgreSQLLockManager(lockConn, log.WithJob("run-locks"))
		supervisorOpts = append(supervisorOpts, jobs.WithLockManager(locks))
	}
	supervisor := jobs.NewSupervisor(k, supervisorOpts...)

	jobManager := jobs.NewJobManagerWithLogger(log)
	var sweep jobs.Job = jobs.NewStaleRunSweepJob(queries, supervisor, locks, cfg.Keeper.SweepSchedule, cfg.Keeper.SweepMarkDone)
	if locks != nil {
		// One replica sweeps per tick
		sweep = jobs.NewLockedJob(sweep, locks, 0, log.WithJob(sweep.Name()))
	}
	if err := jobManager.RegisterJob(sweep); err != nil {
		log.Fatal().Err(err).Str("action", "job_register_failed").Msg("Failed to register stale run sweep")
	}
	jobManager.Start()

	srv := server.New(cfg, server.Dependencies{
		Registry: queries,
		Launcher: supervisor,
		Runs:     supervisor,
		DBStats:  func() interface{} { return pool.GetStats(dbPool) },
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("public_url", cfg.Server.PublicURL).
		Str("browsershots_url", cfg.Remote.BaseURL).
		Dur("extend_interval", cfg.Keeper.Interval).
		Bool("run_locking", cfg.Keeper.EnableLocking).
		Msg("Autoshots service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Str("action", "server_failed").Msg("Server stopped")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	jobManager.Stop()
	// Runs in flight are lost; their jobs stay running until a sweep closes them
	supervisor.Stop()
	log.Info().Msg("Autoshots service stopped")
}

func connectWithRetry(ctx context.Context, databaseURL string, log *logger.Logger) (*pgxpool.Pool, error) {
	const maxRetries = 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		dbPool, err := pool.New(ctx, databaseURL, pool.DefaultConfig())
		if err == nil {
			log.Info().Str("action", "db_connected").Msg("Database connection pool established")
			return dbPool, nil
		}
		lastErr = err

		log.Warn().
			Err(err).
			Int("attempt", i+1).
			Str("action", "db_connect_retry").
			Msg("Retrying database connection")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}
