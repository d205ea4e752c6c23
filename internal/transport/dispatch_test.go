package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// flag is a manually controlled reachability signal.
type flag struct {
	v atomic.Bool
}

func newFlag(online bool) *flag {
	f := &flag{}
	f.v.Store(online)
	return f
}

func (f *flag) Online() bool { return f.v.Load() }
func (f *flag) Set(on bool) { f.v.Store(on) }

// fastRetry keeps backoff waits negligible in tests.
var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Millisecond,
	MaxDelay:        5 * time.Millisecond,
	BackoffMultiple: 2.0,
}

// scriptedServer responds with the given status codes in order, then 200.
func scriptedServer(t *testing.T, calls *atomic.Int32, statuses ...int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"srv-1"}`))
	}))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 503, 502)
	defer srv.Close()

	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), nil)
	resp, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/v1/patients/sync"}, Options{Retry: fastRetry})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d, want success", resp.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 422)
	defer srv.Close()

	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), nil)
	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: fastRetry})
	if err == nil {
		t.Fatal("expected classified error")
	}
	oc, ok := AsOutcome(err)
	if !ok {
		t.Fatalf("error %v is not an Outcome", err)
	}
	if oc.Category != CategoryValidation {
		t.Errorf("category = %s, want %s", oc.Category, CategoryValidation)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on validation)", got)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 500, 500, 500, 500, 500)
	defer srv.Close()

	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), nil)
	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: fastRetry})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	oc, _ := AsOutcome(err)
	if oc == nil || oc.Category != CategoryServer {
		t.Fatalf("want terminal server outcome, got %v", err)
	}
	if got := calls.Load(); got != int32(fastRetry.MaxAttempts) {
		t.Errorf("attempts = %d, want %d", got, fastRetry.MaxAttempts)
	}
}

func TestDoOfflineShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls)
	defer srv.Close()

	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(false), nil)
	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: fastRetry})
	oc, ok := AsOutcome(err)
	if !ok || oc.Category != CategoryNetwork {
		t.Fatalf("want network outcome when offline, got %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("attempts = %d, want 0 (no round trip while offline)", got)
	}
}

func TestDoInvokesRetryObserver(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 500)
	defer srv.Close()

	type retryEvent struct {
		attempt int
		delay   time.Duration
	}
	var events []retryEvent

	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), nil)
	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{
		Retry: fastRetry,
		OnRetry: func(attempt int, delay time.Duration, outcome *Outcome) {
			events = append(events, retryEvent{attempt, delay})
			if outcome.Category != CategoryServer {
				t.Errorf("observer outcome category = %s", outcome.Category)
			}
		},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("observer called %d times, want 1", len(events))
	}
	if events[0].attempt != 1 {
		t.Errorf("observer attempt = %d, want 1", events[0].attempt)
	}
	if events[0].delay != fastRetry.Delay(1) {
		t.Errorf("observer delay = %v, want %v", events[0].delay, fastRetry.Delay(1))
	}
}

// countingRefresher records refresh calls and flips the server to accept.
type countingRefresher struct {
	calls atomic.Int32
	onOK  func()
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	if r.onOK != nil {
		r.onOK()
	}
	return nil
}

func TestDoSingleShotReauthOn401(t *testing.T) {
	var authorized atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !authorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ref := &countingRefresher{onOK: func() { authorized.Store(true) }}
	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), ref)
	resp, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: fastRetry})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d", resp.Status)
	}
	if ref.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", ref.calls.Load())
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2 (401 then replay)", calls.Load())
	}
}

func TestDoReauthDoesNotRecurse(t *testing.T) {
	// Server keeps answering 401 even after refresh.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ref := &countingRefresher{}
	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), ref)
	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: fastRetry})
	oc, ok := AsOutcome(err)
	if !ok || oc.Category != CategoryUnauthorized {
		t.Fatalf("want unauthorized outcome, got %v", err)
	}
	if ref.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", ref.calls.Load())
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	var calls atomic.Int32
	srv := scriptedServer(t, &calls, 500, 500, 500)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	slow := RetryConfig{MaxAttempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 2 * time.Second, BackoffMultiple: 2.0}

	done := make(chan error, 1)
	d := NewDispatcher(NewClient(srv.URL, 5*time.Second, nil), newFlag(true), nil)
	go func() {
		_, err := d.Do(ctx, Request{Method: http.MethodPost, Path: "/x"}, Options{Retry: slow})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("dispatch did not stop after cancellation")
	}
}
