package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afridiag/fieldsync/internal/core/domain"
	"github.com/afridiag/fieldsync/internal/submit"
	"github.com/afridiag/fieldsync/internal/syncer"
	"github.com/afridiag/fieldsync/internal/transport"
)

// Server is the local HTTP API consumed by the device UI and the CLI. It
// binds loopback-style usage: submissions, queue status, manual sync, and
// metrics.
type Server struct {
	coordinator *syncer.Coordinator
	submitter   *submit.Submitter
	online      transport.Checker
	triggerSync func()
	server      *http.Server
	log         *slog.Logger
}

// NewServer creates the local API server.
func NewServer(c *syncer.Coordinator, s *submit.Submitter, online transport.Checker, triggerSync func(), port int) *Server {
	mux := http.NewServeMux()
	srv := &Server{
		coordinator: c,
		submitter:   s,
		online:      online,
		triggerSync: triggerSync,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default().With("component", "server"),
	}

	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /status", srv.handleStatus)
	mux.HandleFunc("POST /sync", srv.handleSync)
	mux.HandleFunc("POST /submit/{domain}", srv.handleSubmit)
	mux.Handle("GET /metrics", promhttp.Handler())

	return srv
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.online.Online(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.coordinator.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSync runs a sync pass inline and returns the report. With
// ?domain=<d> only that domain is drained.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if d := r.URL.Query().Get("domain"); d != "" {
		dom := domain.Domain(d)
		if !dom.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("unknown domain %q", d)})
			return
		}
		report, err := s.coordinator.Sync(r.Context(), dom)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := s.coordinator.SyncAll(r.Context())
	if err != nil {
		writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	dom := domain.Domain(r.PathValue("domain"))
	if !dom.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("unknown domain %q", dom)})
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON payload"})
		return
	}

	result, err := s.submitter.Submit(r.Context(), dom, payload)
	if err != nil {
		status := http.StatusInternalServerError
		if result == nil {
			// Rejected before any network attempt or enqueue.
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeSyncError(w http.ResponseWriter, err error) {
	if oc, ok := transport.AsOutcome(err); ok && oc.Category == transport.CategoryNetwork {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": oc.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
