package keeper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/autoshots/core/pkg/logger"
)

// HTTPNotifier posts url=<target> to the callback address. All runs share one
// notifier, so a dead front end trips the breaker instead of every finished
// run waiting on its own timeout.
type HTTPNotifier struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewHTTPNotifier(client *http.Client, log *logger.Logger) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.Nop()
	}

	settings := gobreaker.Settings{
		Name:        "completion-callback",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Callback circuit breaker changed state")
		},
	}

	return &HTTPNotifier{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  log,
	}
}

// NotifyDone is attempted once. Any status outside 2xx and 3xx is an error.
func (n *HTTPNotifier) NotifyDone(ctx context.Context, callbackURL, targetURL string) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.post(ctx, callbackURL, targetURL)
	})
	return err
}

func (n *HTTPNotifier) post(ctx context.Context, callbackURL, targetURL string) error {
	form := url.Values{"url": {targetURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.LogAPICall(http.MethodPost, callbackURL, 0, time.Since(start), err)
		return fmt.Errorf("failed to post callback: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		err := fmt.Errorf("callback returned status %d", resp.StatusCode)
		n.logger.LogAPICall(http.MethodPost, callbackURL, resp.StatusCode, time.Since(start), err)
		return err
	}

	n.logger.LogAPICall(http.MethodPost, callbackURL, resp.StatusCode, time.Since(start), nil)
	return nil
}
