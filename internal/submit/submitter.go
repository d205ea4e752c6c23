// Package submit is the entry point callers use to write to the remote
// authority. A submission never surfaces a hard failure for a write that
// can be retried later: if the live path gives up, the mutation is parked
// in the durable queue instead.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/afridiag/fieldsync/internal/core/domain"
	"github.com/afridiag/fieldsync/internal/metrics"
	"github.com/afridiag/fieldsync/internal/queue"
	"github.com/afridiag/fieldsync/internal/transport"
)

// dispatcher is the slice of transport.Dispatcher the submitter needs.
type dispatcher interface {
	Do(ctx context.Context, req transport.Request, opts transport.Options) (*transport.Response, error)
}

// Result is the outcome of a submission. Success with Offline set means the
// write was durably queued and will be delivered by a later sync pass.
type Result struct {
	Success bool            `json:"success"`
	Offline bool            `json:"offline"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	LocalID string          `json:"local_id,omitempty"`
}

// requiredFields names the identifying field each domain's payload must
// carry. A payload missing its field is invalid by construction and is
// rejected before any network attempt or enqueue.
var requiredFields = map[domain.Domain]map[string]any{
	domain.DomainPatient:         {"unique_id": "required"},
	domain.DomainDiagnosis:       {"patient_id": "required"},
	domain.DomainTreatment:       {"diagnosis_id": "required"},
	domain.DomainTreatmentUpdate: {"treatment_id": "required"},
	domain.DomainFollowUp:        {"patient_id": "required"},
	domain.DomainReview:          {"diagnosis_id": "required"},
	domain.DomainUserUpdate:      {"user_id": "required"},
}

// Submitter coordinates the online-first, queue-fallback write path.
type Submitter struct {
	dispatch dispatcher
	queue    *queue.Queue
	online   transport.Checker
	validate *validator.Validate
	log      *slog.Logger

	retry             transport.RetryConfig
	timeout           time.Duration
	predictionTimeout time.Duration

	// OnRetry, when set, observes the dispatcher's retries so a UI can
	// render progress.
	OnRetry transport.RetryFunc
}

// New creates a submitter. timeout is the interactive request budget;
// predictionTimeout applies to diagnosis submissions, which trigger model
// inference on the backend.
func New(d dispatcher, q *queue.Queue, online transport.Checker, timeout, predictionTimeout time.Duration) *Submitter {
	return &Submitter{
		dispatch:          d,
		queue:             q,
		online:            online,
		validate:          validator.New(),
		log:               slog.Default().With("component", "submit"),
		retry:             transport.InteractiveRetry,
		timeout:           timeout,
		predictionTimeout: predictionTimeout,
	}
}

// Submit attempts the live request first and falls back to the durable
// queue on any terminal failure or while offline. Only an invalid payload
// or a store failure during the fallback enqueue is surfaced as an error.
func (s *Submitter) Submit(ctx context.Context, d domain.Domain, payload map[string]any) (*Result, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown domain %q", d)
	}
	if err := s.checkPayload(d, payload); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(d), "rejected").Inc()
		return nil, err
	}

	if !s.online.Online() {
		return s.enqueue(ctx, d, payload, "offline, queued for sync")
	}

	resp, err := s.dispatch.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    d.Endpoint(),
		Body:    payload,
		Timeout: s.timeoutFor(d),
	}, transport.Options{
		Retry:   s.retry,
		OnRetry: s.OnRetry,
	})
	if err == nil {
		metrics.SubmissionsTotal.WithLabelValues(string(d), "online").Inc()
		return &Result{Success: true, Data: resp.Body}, nil
	}

	s.log.Warn("live submission failed, falling back to queue", "domain", d, "error", err)
	return s.enqueue(ctx, d, payload, "submission failed, queued for sync")
}

func (s *Submitter) enqueue(ctx context.Context, d domain.Domain, payload map[string]any, msg string) (*Result, error) {
	m, err := s.queue.Enqueue(ctx, d, payload)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(d), "rejected").Inc()
		return &Result{Success: false, Message: "could not persist submission"}, err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(d), "queued").Inc()
	return &Result{Success: true, Offline: true, Message: msg, LocalID: m.LocalID}, nil
}

// checkPayload runs the per-domain structural rules before any network
// traffic.
func (s *Submitter) checkPayload(d domain.Domain, payload map[string]any) error {
	rules := requiredFields[d]
	if len(rules) == 0 {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}

	errs := s.validate.ValidateMap(payload, rules)
	if len(errs) == 0 {
		return nil
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid %s payload: missing %s", d, strings.Join(fields, ", "))
}

// timeoutFor returns the per-domain request budget. Diagnosis submissions
// run model inference remotely and get the longer tier.
func (s *Submitter) timeoutFor(d domain.Domain) time.Duration {
	if d == domain.DomainDiagnosis && s.predictionTimeout > 0 {
		return s.predictionTimeout
	}
	return s.timeout
}
