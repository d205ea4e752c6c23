package transport

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/afridiag/fieldsync/internal/metrics"
)

// Checker is the network-reachability signal consulted before each attempt.
type Checker interface {
	Online() bool
}

// DefaultSkipCategories are never retried by the dispatcher regardless of
// budget: re-authenticating, re-authorizing, or fixing the payload is the
// caller's job, not time's.
var DefaultSkipCategories = []Category{
	CategoryUnauthorized,
	CategoryForbidden,
	CategoryValidation,
}

// RetryFunc observes retries so a calling UI can render "retrying, attempt
// N" without the dispatcher depending on any UI type.
type RetryFunc func(attempt int, delay time.Duration, outcome *Outcome)

// Options tunes a single dispatch.
type Options struct {
	Retry          RetryConfig
	SkipCategories []Category
	OnRetry        RetryFunc
	Timeout        time.Duration
}

// Dispatcher performs a logical request with automatic bounded retry. It is
// the only place retries happen; layers above either absorb terminal
// failures into the offline queue or surface them.
type Dispatcher struct {
	client    *Client
	online    Checker
	refresher CredentialRefresher
	log       *slog.Logger
}

// NewDispatcher creates a dispatcher. refresher may be nil, disabling the
// single-shot re-authentication on 401.
func NewDispatcher(client *Client, online Checker, refresher CredentialRefresher) *Dispatcher {
	return &Dispatcher{
		client:    client,
		online:    online,
		refresher: refresher,
		log:       slog.Default().With("component", "dispatch"),
	}
}

// Do executes the request, retrying transient failures with exponential
// backoff. It returns the successful response, or the classified outcome of
// the last attempt as the error.
func (d *Dispatcher) Do(ctx context.Context, req Request, opts Options) (*Response, error) {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = InteractiveRetry
	}
	skip := opts.SkipCategories
	if skip == nil {
		skip = DefaultSkipCategories
	}
	if opts.Timeout > 0 && req.Timeout == 0 {
		req.Timeout = opts.Timeout
	}

	reauthed := false
	var lastOutcome *Outcome

	for attempt := 1; attempt <= opts.Retry.MaxAttempts; attempt++ {
		if d.online != nil && !d.online.Online() {
			return nil, offlineOutcome()
		}

		start := time.Now()
		resp, err := d.client.Do(ctx, req)
		metrics.DispatchLatency.WithLabelValues(req.Path).Observe(time.Since(start).Seconds())

		if err == nil && resp.OK() {
			metrics.DispatchAttemptsTotal.WithLabelValues(req.Path, "ok").Inc()
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		outcome := Classify(err, resp)
		lastOutcome = outcome
		metrics.DispatchAttemptsTotal.WithLabelValues(req.Path, string(outcome.Category)).Inc()

		// Bounded exception to "Unauthorized is terminal": refresh
		// credentials once and replay the request with a fresh token.
		if outcome.Category == CategoryUnauthorized && d.refresher != nil && !reauthed {
			reauthed = true
			if rerr := d.refresher.Refresh(ctx); rerr == nil {
				d.log.Debug("re-authenticated after 401", "path", req.Path)
				attempt--
				continue
			}
			d.log.Warn("credential refresh failed", "path", req.Path)
		}

		if !outcome.Retryable || slices.Contains(skip, outcome.Category) || attempt == opts.Retry.MaxAttempts {
			return nil, outcome
		}

		delay := opts.Retry.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, outcome)
		}
		metrics.RetriesTotal.WithLabelValues(req.Path).Inc()
		d.log.Debug("retrying request",
			"path", req.Path,
			"attempt", attempt,
			"delay", delay,
			"category", outcome.Category,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastOutcome
}
