// Package netstatus provides the network-reachability signal: a background
// prober of the remote authority's health endpoint.
package netstatus

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/afridiag/fieldsync/internal/metrics"
)

// probeTimeout bounds one reachability check.
const probeTimeout = 5 * time.Second

// Flag is a manually controlled reachability signal, used in tests and for
// deployments that wire an external signal in.
type Flag struct {
	v atomic.Bool
}

func NewFlag(online bool) *Flag {
	f := &Flag{}
	f.v.Store(online)
	return f
}

func (f *Flag) Online() bool { return f.v.Load() }
func (f *Flag) Set(on bool)  { f.v.Store(on) }

// Monitor probes a URL on an interval and tracks whether the remote is
// reachable. Any HTTP response counts as reachable; only a connection-level
// failure marks the device offline.
type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger

	online   atomic.Bool
	onChange func(online bool)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a monitor for url. The initial state is offline until
// the first probe succeeds.
func NewMonitor(url string, interval time.Duration) *Monitor {
	return &Monitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: probeTimeout},
		log:      slog.Default().With("component", "netstatus"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetOnChange registers a callback invoked on every connectivity
// transition. Must be called before Start.
func (m *Monitor) SetOnChange(fn func(online bool)) {
	m.onChange = fn
}

// Online reports the last probed state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Start probes immediately and then on every interval tick until Stop.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Monitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		m.transition(false)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.transition(false)
		return
	}
	resp.Body.Close()
	m.transition(true)
}

func (m *Monitor) transition(online bool) {
	prev := m.online.Swap(online)
	if online {
		metrics.Online.Set(1)
	} else {
		metrics.Online.Set(0)
	}
	if prev == online {
		return
	}

	if online {
		m.log.Info("connectivity restored", "url", m.url)
	} else {
		m.log.Warn("connectivity lost", "url", m.url)
	}
	if m.onChange != nil {
		m.onChange(online)
	}
}
