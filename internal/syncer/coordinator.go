// Package syncer drains the durable queue against the remote authority once
// connectivity returns.
package syncer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/afridiag/fieldsync/internal/core/domain"
	"github.com/afridiag/fieldsync/internal/metrics"
	"github.com/afridiag/fieldsync/internal/queue"
	"github.com/afridiag/fieldsync/internal/transport"
)

// dispatcher is the slice of transport.Dispatcher the coordinator needs.
type dispatcher interface {
	Do(ctx context.Context, req transport.Request, opts transport.Options) (*transport.Response, error)
}

// Coordinator replays queued mutations one domain at a time. Items are sent
// sequentially in insertion order to keep one entity's update sequence
// intact and to bound burst load on the remote system.
type Coordinator struct {
	queue    *queue.Queue
	dispatch dispatcher
	online   transport.Checker
	retry    transport.RetryConfig
	timeout  time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	lastSync time.Time
}

// New creates a coordinator. timeout bounds each sync-pass request so one
// slow entry cannot stall the drain.
func New(q *queue.Queue, d dispatcher, online transport.Checker, timeout time.Duration) *Coordinator {
	return &Coordinator{
		queue:    q,
		dispatch: d,
		online:   online,
		retry:    transport.BackgroundRetry,
		timeout:  timeout,
		log:      slog.Default().With("component", "syncer"),
	}
}

// Sync drains one domain's queue. Each success is removed from the queue
// immediately after the remote acknowledges it, so an interrupted pass
// simply leaves the unsynced remainder for the next one. Per-item terminal
// failures are recorded in the report, never raised; only an offline start
// or a queue storage failure returns an error.
func (c *Coordinator) Sync(ctx context.Context, d domain.Domain) (domain.DomainReport, error) {
	report := domain.DomainReport{Domain: d}

	if !c.online.Online() {
		return report, &transport.Outcome{
			Category:  transport.CategoryNetwork,
			Message:   "cannot sync while offline",
			Retryable: true,
		}
	}

	pending, err := c.queue.List(ctx, d)
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		return report, nil
	}

	c.log.Info("sync pass started", "domain", d, "pending", len(pending))

	var stillPending []domain.Mutation
	for _, m := range pending {
		if ctx.Err() != nil {
			stillPending = append(stillPending, m)
			continue
		}

		m.AttemptCount++
		_, err := c.dispatch.Do(ctx, transport.Request{
			Method:  http.MethodPost,
			Path:    d.Endpoint(),
			Body:    m.Payload,
			Timeout: c.timeout,
		}, transport.Options{Retry: c.retry})

		if err == nil {
			if rerr := c.queue.Remove(ctx, d, m.LocalID); rerr != nil {
				return report, rerr
			}
			report.Succeeded++
			metrics.SyncMutationsTotal.WithLabelValues(string(d), "succeeded").Inc()
			continue
		}

		report.Failed++
		metrics.SyncMutationsTotal.WithLabelValues(string(d), "failed").Inc()
		report.Errors = append(report.Errors, domain.SyncError{
			LocalID: m.LocalID,
			Message: err.Error(),
		})
		stillPending = append(stillPending, m)
		c.log.Warn("mutation failed to sync", "domain", d, "local_id", m.LocalID, "error", err)
	}

	if err := c.queue.ReplaceAll(ctx, d, stillPending); err != nil {
		return report, err
	}

	if report.Succeeded > 0 {
		c.markSynced()
	}
	c.log.Info("sync pass finished", "domain", d, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// SyncAll drains every domain in the fixed order. One domain's failure does
// not stop the rest; its storage error is recorded as a failed entry in the
// report instead.
func (c *Coordinator) SyncAll(ctx context.Context) (*domain.SyncReport, error) {
	if !c.online.Online() {
		return nil, &transport.Outcome{
			Category:  transport.CategoryNetwork,
			Message:   "cannot sync while offline",
			Retryable: true,
		}
	}

	report := &domain.SyncReport{StartedAt: time.Now().UTC()}
	for _, d := range domain.SyncOrder {
		dr, err := c.Sync(ctx, d)
		if err != nil {
			dr.Errors = append(dr.Errors, domain.SyncError{Message: err.Error()})
			c.log.Error("sync pass aborted for domain", "domain", d, "error", err)
		}
		report.Add(dr)
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// Status returns the derived queue snapshot.
func (c *Coordinator) Status(ctx context.Context) (*domain.QueueStatus, error) {
	counts, err := c.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	online := c.online.Online()
	status := &domain.QueueStatus{
		Pending:      counts,
		TotalPending: total,
		Online:       online,
		CanSync:      online && total > 0,
	}
	if last, ok := c.LastSyncTime(); ok {
		status.LastSyncTime = &last
	}
	return status, nil
}

// LastSyncTime returns when a pass last delivered at least one mutation.
func (c *Coordinator) LastSyncTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync, !c.lastSync.IsZero()
}

func (c *Coordinator) markSynced() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSync = time.Now().UTC()
}
