// Package readiness polls the backend status endpoint until it reports
// ready. Every other feature is gated on it.
package readiness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medibot/medibot-cli/internal/logging"
	"github.com/medibot/medibot-cli/internal/pubsub"
	"github.com/medibot/medibot-cli/pkg/client"
)

type State string

const (
	StateChecking    State = "checking"
	StateInstalling  State = "installing"
	StateUnavailable State = "unavailable"
	StateReady       State = "ready"
)

const (
	DefaultInterval = 5 * time.Second

	// UnavailableDetails replaces whatever the backend said when it could
	// not be reached at all.
	UnavailableDetails = "Could not connect to the backend server."

	EventStateChanged pubsub.EventType = "readiness_changed"
)

type Snapshot struct {
	State   State
	Details string
}

func (s Snapshot) Ready() bool {
	return s.State == StateReady
}

// Gate is the read-only view other components check before dispatching.
type Gate interface {
	Ready() bool
}

type Prober interface {
	Status(ctx context.Context) (*client.StatusResponse, error)
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

type Monitor struct {
	prober   Prober
	interval time.Duration
	broker   *pubsub.Broker[Snapshot]
	log      *slog.Logger

	mu      sync.RWMutex
	current Snapshot
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: DefaultInterval,
		broker:   pubsub.NewBroker[Snapshot](),
		log:      slog.With("service", "readiness"),
		current:  Snapshot{State: StateChecking},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes once right away and then every interval until the backend
// reports ready, ctx is done, or Stop is called. It is a no-op while a
// loop is running or once ready has been observed.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		select {
		case <-m.done:
			m.cancel()
			m.cancel, m.done = nil, nil
		default:
			return
		}
	}
	if m.current.Ready() {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	go m.run(loopCtx, done)
}

// Stop tears the polling loop down and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reload is the manual retry: it discards the current loop and state and
// starts over as if the monitor had just been created.
func (m *Monitor) Reload(ctx context.Context) {
	m.Stop()
	m.set(Snapshot{State: StateChecking})
	m.Start(ctx)
}

// Close stops polling and closes every subscription.
func (m *Monitor) Close() {
	m.Stop()
	m.broker.Shutdown()
}

func (m *Monitor) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Monitor) Ready() bool {
	return m.State().Ready()
}

func (m *Monitor) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return m.broker.Subscribe(ctx)
}

// WaitReady blocks until the backend is ready or ctx is done. It does not
// start polling by itself.
func (m *Monitor) WaitReady(ctx context.Context) error {
	ch := m.Subscribe(ctx)
	if m.Ready() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				if m.Ready() {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				return context.Canceled
			}
			if event.Payload.Ready() {
				return nil
			}
		}
	}
}

// Probe runs one status check outside the polling loop and records it.
func (m *Monitor) Probe(ctx context.Context) Snapshot {
	return m.probe(ctx)
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer logging.RecoverPanic("readiness-monitor", nil)

	if m.probe(ctx).Ready() {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.probe(ctx).Ready() {
				m.log.Info("backend ready, polling stopped")
				return
			}
		}
	}
}

func (m *Monitor) probe(ctx context.Context) Snapshot {
	resp, err := m.prober.Status(ctx)
	if ctx.Err() != nil {
		// torn down mid-probe, the result belongs to a dead loop
		return m.State()
	}

	var next Snapshot
	if err != nil {
		m.log.Warn("status probe failed", "error", err)
		next = Snapshot{State: StateUnavailable, Details: UnavailableDetails}
	} else {
		next = Snapshot{State: parseState(resp.Status), Details: resp.Details}
		if next.State == StateChecking && resp.Status != string(StateChecking) {
			m.log.Warn("unknown status tag", "status", resp.Status)
		}
	}
	m.set(next)
	return next
}

func (m *Monitor) set(next Snapshot) {
	m.mu.Lock()
	prev := m.current
	m.current = next
	if prev != next {
		// published under the lock so subscribers see transitions in order
		m.broker.Publish(EventStateChanged, next)
	}
	m.mu.Unlock()

	if prev.State != next.State {
		m.log.Info("readiness changed", "from", prev.State, "to", next.State, "details", next.Details)
	}
}

func parseState(tag string) State {
	switch State(tag) {
	case StateInstalling, StateUnavailable, StateReady:
		return State(tag)
	default:
		return StateChecking
	}
}
