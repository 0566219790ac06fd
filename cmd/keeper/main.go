package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoshots/core/internal/config"
	"github.com/autoshots/core/pkg/browsershots"
	"github.com/autoshots/core/pkg/keeper"
	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/utils"
)

// Runs one keeper in the foreground, without the registry. Useful to check
// credentials or to keep a single job alive from a shell.
func main() {
	var (
		targetURL = flag.String("url", "", "Submitted page URL, e.g. http://example.org/")
		callback  = flag.String("callback", "", "Completion callback address (default PUBLIC_URL/done)")
		once      = flag.Bool("once", false, "Run a single extension cycle and exit")
	)
	flag.Parse()

	logger.SetupLogger()
	log := logger.New("autoshots-keeper")

	if *targetURL == "" {
		log.Fatal().Msg("-url is required")
	}

	cfg := config.Load()
	if *callback == "" {
		*callback = cfg.CallbackURL()
	}

	remote := browsershots.DefaultConfig(cfg.Remote.BaseURL, browsershots.Credentials{
		Username: cfg.Remote.Username,
		Password: cfg.Remote.Password,
	})
	remote.Timeout = cfg.RemoteTimeout()

	target := keeper.Target{
		URL:         *targetURL,
		JobURL:      cfg.Remote.BaseURL + "/" + *targetURL,
		CallbackURL: *callback,
	}
	log = log.WithRun("cli", utils.RunName(target.URL), target.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.ToContext(ctx)

	if *once {
		client, err := browsershots.NewClient(remote, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create browsershots client")
		}
		result, err := keeper.NewCycle(client).RunOnce(ctx, target.JobURL)
		if err != nil {
			log.Fatal().Err(err).Str("job_url", target.JobURL).Msg("Extension cycle failed")
		}
		log.Info().
			Str("result", result.String()).
			Bool("done", result.IsDone()).
			Msg("Extension cycle finished")
		return
	}

	k := keeper.New(
		func() (keeper.Session, error) { return browsershots.NewClient(remote, log) },
		keeper.NewHTTPNotifier(&http.Client{Timeout: 30 * time.Second}, log),
		keeper.WithInterval(cfg.Keeper.Interval),
		keeper.WithLogger(log),
	)

	err := k.Run(ctx, target)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Keeper run interrupted")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Keeper run ended without completion")
	}
}
