// Package health tracks backend reachability. Any observed unavailability
// invalidates the operator session: the console never keeps using a token
// against a backend it cannot see.
package health

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultProbeTimeout = 2 * time.Second
	DefaultInterval     = 10 * time.Second
)

// Prober performs one liveness request. *client.Client satisfies it.
type Prober interface {
	Health(ctx context.Context) error
}

// Session is the part of the session manager the monitor drives.
type Session interface {
	Established() bool
	Clear()
}

// Monitor probes the backend on demand and on a fixed interval.
type Monitor struct {
	prober       Prober
	clock        clockwork.Clock
	probeTimeout time.Duration
	interval     time.Duration

	available atomic.Bool

	mu        sync.Mutex
	session   Session
	listeners []func(bool)
	stop      func()
}

// NewMonitor creates a monitor. The backend is assumed available until a
// probe says otherwise.
func NewMonitor(prober Prober, clock clockwork.Clock) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Monitor{
		prober:       prober,
		clock:        clock,
		probeTimeout: DefaultProbeTimeout,
		interval:     DefaultInterval,
	}
	m.available.Store(true)
	return m
}

// SetProbeTimeout overrides the per-probe deadline.
func (m *Monitor) SetProbeTimeout(d time.Duration) { m.probeTimeout = d }

// SetInterval overrides the background probe period. Call before Start.
func (m *Monitor) SetInterval(d time.Duration) { m.interval = d }

// Bind attaches the session the monitor invalidates on failure.
func (m *Monitor) Bind(s Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

// OnStatus registers fn to be called with the result of every probe.
func (m *Monitor) OnStatus(fn func(available bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Available returns the last observed reachability without probing.
func (m *Monitor) Available() bool {
	return m.available.Load()
}

// Check probes the backend once. On any failure (non-200, timeout, network
// error) it marks the backend unavailable and clears the bound session,
// whether or not the probe was triggered by the operator.
//
// If ctx itself is cancelled the probe produced no observation and nothing
// changes.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.prober.Health(probeCtx)
	if err != nil && ctx.Err() != nil {
		return false
	}

	healthy := err == nil
	m.available.Store(healthy)

	m.mu.Lock()
	session := m.session
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	if !healthy {
		slog.Warn("Backend health check failed, clearing session", "error", err)
		if session != nil {
			session.Clear()
		}
	}
	for _, fn := range listeners {
		fn(healthy)
	}
	return healthy
}

// Start launches the periodic probe. Each tick re-probes only while a session
// is established. The returned function stops the loop and waits for it to
// exit; it is safe to call more than once. Calling Start while running
// returns the existing stop function.
func (m *Monitor) Start() (stop func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return m.stop
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := m.clock.NewTicker(m.interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				m.tick(ctx)
			}
		}
	}()
	slog.Info("Health check started", "interval", m.interval.String())

	var once sync.Once
	m.stop = func() {
		once.Do(func() {
			cancel()
			<-done
			m.mu.Lock()
			m.stop = nil
			m.mu.Unlock()
			slog.Info("Health check stopped")
		})
	}
	return m.stop
}

func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil || !session.Established() {
		return
	}
	m.Check(ctx)
}
