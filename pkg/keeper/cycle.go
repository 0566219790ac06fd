package keeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoshots/core/pkg/extract"
)

// Session is one authenticated conversation with browsershots.
// *browsershots.Client implements it.
type Session interface {
	FetchLandingPage(ctx context.Context) (string, error)
	Login(ctx context.Context, csrf string) error
	FetchStatusPage(ctx context.Context, jobURL string) (string, error)
	SubmitRenewal(ctx context.Context, requestID string) error
}

// Result of a status page lookup: either a pending request group to renew,
// or Done when the page offers nothing to extend.
type Result struct {
	requestID string
}

// Done means the job has no further work to extend.
var Done = Result{}

// Pending wraps a renewable request identifier.
func Pending(requestID string) Result {
	return Result{requestID: requestID}
}

func (r Result) IsDone() bool {
	return r.requestID == ""
}

// RequestID is empty for Done.
func (r Result) RequestID() string {
	return r.requestID
}

func (r Result) String() string {
	if r.IsDone() {
		return "done"
	}
	return "pending(" + r.requestID + ")"
}

// ResolveRequest inspects a status page. A missing extend anchor is the
// terminal signal, not an error.
func ResolveRequest(html string) (Result, error) {
	id, err := extract.Extract(extract.ExtendPattern, extract.IDGroup, html)
	if errors.Is(err, extract.ErrNotFound) {
		return Done, nil
	}
	if err != nil {
		return Done, err
	}
	return Pending(id), nil
}

// Cycle is one authenticate, resolve, renew pass.
type Cycle struct {
	session Session
}

func NewCycle(session Session) *Cycle {
	return &Cycle{session: session}
}

// RunOnce fetches a fresh csrf token, logs in, resolves the request group for
// jobURL and renews it. Every step depends on the previous one.
func (c *Cycle) RunOnce(ctx context.Context, jobURL string) (Result, error) {
	landing, err := c.session.FetchLandingPage(ctx)
	if err != nil {
		return Done, fmt.Errorf("failed to fetch landing page: %w", err)
	}

	csrf, err := extract.Extract(extract.CSRFPattern, extract.CSRFGroup, landing)
	if err != nil {
		return Done, fmt.Errorf("failed to extract csrf token: %w", err)
	}

	if err := c.session.Login(ctx, csrf); err != nil {
		return Done, fmt.Errorf("failed to log in: %w", err)
	}

	page, err := c.session.FetchStatusPage(ctx, jobURL)
	if err != nil {
		return Done, fmt.Errorf("failed to fetch status page: %w", err)
	}

	result, err := ResolveRequest(page)
	if err != nil {
		return Done, err
	}
	if result.IsDone() {
		return Done, nil
	}

	if err := c.session.SubmitRenewal(ctx, result.RequestID()); err != nil {
		return Done, fmt.Errorf("failed to renew request group %s: %w", result.RequestID(), err)
	}

	return result, nil
}
