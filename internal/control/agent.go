// Package control wires the fieldsync components together and manages their
// lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/afridiag/fieldsync/internal/core/config"
	"github.com/afridiag/fieldsync/internal/netstatus"
	"github.com/afridiag/fieldsync/internal/queue"
	"github.com/afridiag/fieldsync/internal/storage"
	"github.com/afridiag/fieldsync/internal/storage/memory"
	"github.com/afridiag/fieldsync/internal/storage/redisstore"
	"github.com/afridiag/fieldsync/internal/storage/sqlite"
	"github.com/afridiag/fieldsync/internal/submit"
	"github.com/afridiag/fieldsync/internal/syncer"
	"github.com/afridiag/fieldsync/internal/transport"
)

// Agent is the long-running fieldsync process: durable queue, dispatcher,
// connectivity monitor, sync loop, and the local HTTP API the device UI and
// CLI talk to.
type Agent struct {
	cfg         *config.AppConfig
	store       storage.Store
	queue       *queue.Queue
	monitor     *netstatus.Monitor
	coordinator *syncer.Coordinator
	submitter   *submit.Submitter
	server      *Server
	log         *slog.Logger

	kick     chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewAgent creates an agent with all dependencies initialized.
func NewAgent(cfg *config.AppConfig) (*Agent, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	q := queue.New(store)

	var tokens transport.TokenSource
	var refresher transport.CredentialRefresher
	if cfg.Remote.Auth.Token != "" {
		tokens = transport.StaticToken(cfg.Remote.Auth.Token)
	} else if cfg.Remote.Auth.Username != "" {
		src := transport.NewLoginTokenSource(cfg.Remote.BaseURL, cfg.Remote.Auth.Username, cfg.Remote.Auth.Password)
		tokens = src
		refresher = src
	}

	monitor := netstatus.NewMonitor(cfg.Remote.BaseURL+cfg.Sync.ProbePath, cfg.Sync.ProbeInterval.Std())

	client := transport.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout.Std(), tokens)
	dispatcher := transport.NewDispatcher(client, monitor, refresher)

	coordinator := syncer.New(q, dispatcher, monitor, cfg.Remote.Timeout.Std())
	submitter := submit.New(dispatcher, q, monitor, cfg.Remote.Timeout.Std(), cfg.Remote.PredictionTimeout.Std())

	a := &Agent{
		cfg:         cfg,
		store:       store,
		queue:       q,
		monitor:     monitor,
		coordinator: coordinator,
		submitter:   submitter,
		log:         slog.Default().With("component", "agent"),
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	a.server = NewServer(coordinator, submitter, monitor, a.TriggerSync, cfg.Server.Port)

	// Drain the backlog as soon as connectivity returns.
	monitor.SetOnChange(func(online bool) {
		if online {
			a.TriggerSync()
		}
	})

	return a, nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(context.Background(), cfg.SQLite)
	case "redis":
		return redisstore.Open(cfg.Redis)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Start launches the connectivity monitor, the local HTTP API, and the
// periodic sync loop.
func (a *Agent) Start(ctx context.Context) error {
	a.monitor.Start(ctx)

	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("local API server stopped", "error", err)
		}
	}()

	a.wg.Add(1)
	go a.syncLoop(ctx)

	a.log.Info("agent started",
		"port", a.cfg.Server.Port,
		"remote", a.cfg.Remote.BaseURL,
		"storage", a.cfg.Storage.Driver,
		"sync_interval", a.cfg.Sync.Interval.Std(),
	)
	return nil
}

// TriggerSync requests an immediate sync pass. Coalesces when one is
// already requested.
func (a *Agent) TriggerSync() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

func (a *Agent) syncLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Sync.Interval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
		case <-a.kick:
		}

		a.runPass(ctx)
	}
}

func (a *Agent) runPass(ctx context.Context) {
	if !a.monitor.Online() {
		a.log.Debug("skipping sync pass, offline")
		return
	}

	status, err := a.coordinator.Status(ctx)
	if err != nil {
		a.log.Error("failed to read queue status", "error", err)
		return
	}
	if status.TotalPending == 0 {
		return
	}

	report, err := a.coordinator.SyncAll(ctx)
	if err != nil {
		a.log.Warn("sync pass did not start", "error", err)
		return
	}
	a.log.Info("background sync pass finished",
		"succeeded", report.TotalSucceeded,
		"failed", report.TotalFailed,
	)
}

// Stop shuts the agent down, waiting for the sync loop to finish the
// current item. In-flight queue state is durable, so an interrupted pass
// simply resumes on the next start.
func (a *Agent) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stop) })
	a.monitor.Stop()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("timed out waiting for sync loop")
	}

	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("error stopping local API server", "error", err)
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	a.log.Info("agent stopped")
	return nil
}
