// Package netmon keeps the device reachable. It checks the network link and
// the broker on a fixed interval, tries a bounded number of reconnects when a
// check fails, and restarts the device once too many checks in a row have
// failed.
package netmon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrUnsupported = errors.New("netmon: not supported on this platform (requires Linux)")

const (
	DefaultProbeCount        = 5
	DefaultReconnectAttempts = 2
	DefaultReconnectWait     = 10 * time.Second
	DefaultRebootThreshold   = 100
)

type State int

const (
	Healthy State = iota
	Degraded
	Rebooting
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Rebooting:
		return "rebooting"
	default:
		return "unknown"
	}
}

// Link is the network link the device is attached through.
type Link interface {
	Connected(ctx context.Context) bool
	Connect(ctx context.Context) bool
	Disconnect(ctx context.Context)
}

// Prober checks that a remote address is reachable.
type Prober interface {
	Probe(ctx context.Context, addr string) error
}

// Session is the messaging session carried over the link.
type Session interface {
	Begin(ctx context.Context) error
}

// Restarter restarts the whole device. It usually does not return.
type Restarter func() error

type Config struct {
	// ProbeAddr is probed after the link check. Empty disables probing.
	ProbeAddr         string
	ProbeCount        int
	ReconnectAttempts int
	ReconnectWait     time.Duration
	RebootThreshold   int
}

type Monitor struct {
	cfg     Config
	link    Link
	prober  Prober
	session Session
	restart Restarter

	mu       sync.Mutex
	state    State
	failures int
	attempt  int
}

func New(cfg Config, link Link, prober Prober, session Session, restart Restarter) *Monitor {
	if cfg.ProbeCount <= 0 {
		cfg.ProbeCount = DefaultProbeCount
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.RebootThreshold <= 0 {
		cfg.RebootThreshold = DefaultRebootThreshold
	}
	return &Monitor{
		cfg:     cfg,
		link:    link,
		prober:  prober,
		session: session,
		restart: restart,
	}
}

// Run checks the connection every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) func() error {
	return func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		slog.Debug("connection monitor started", "interval", interval, "module", "netmon")
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				m.Check(ctx)
			}
		}
	}
}

// Check runs a single health check and any recovery it calls for.
func (m *Monitor) Check(ctx context.Context) State {
	if m.State() == Rebooting {
		return Rebooting
	}

	linkUp, ok := m.healthy(ctx)
	if ok {
		m.mu.Lock()
		if m.state != Healthy {
			slog.Info("connection restored", "failures", m.failures, "module", "netmon")
		}
		m.state = Healthy
		m.failures = 0
		m.attempt = 0
		m.mu.Unlock()
		return Healthy
	}

	m.mu.Lock()
	m.failures++
	failures := m.failures
	if failures >= m.cfg.RebootThreshold {
		m.state = Rebooting
		m.mu.Unlock()
		slog.Error("connection failure budget exhausted, restarting device", "failures", failures, "module", "netmon")
		if err := m.restart(); err != nil {
			slog.Error("restart failed", "error", err, "module", "netmon")
		}
		return Rebooting
	}
	m.state = Degraded
	m.mu.Unlock()

	slog.Warn("connection check failed", "failures", failures, "threshold", m.cfg.RebootThreshold, "module", "netmon")
	if linkUp {
		// Only the broker is unreachable; leave the link alone.
		m.beginSession(ctx)
	} else {
		m.reconnect(ctx)
	}
	return Degraded
}

// healthy reports whether the link is up and whether the whole check passed.
func (m *Monitor) healthy(ctx context.Context) (bool, bool) {
	if !m.link.Connected(ctx) {
		slog.Warn("network link down", "module", "netmon")
		return false, false
	}
	if m.cfg.ProbeAddr == "" || m.prober == nil {
		return true, true
	}
	for i := 0; i < m.cfg.ProbeCount; i++ {
		err := m.prober.Probe(ctx, m.cfg.ProbeAddr)
		if err == nil {
			return true, true
		}
		slog.Debug("probe failed", "addr", m.cfg.ProbeAddr, "probe", i+1, "error", err, "module", "netmon")
	}
	slog.Warn("broker unreachable", "addr", m.cfg.ProbeAddr, "probes", m.cfg.ProbeCount, "module", "netmon")
	return true, false
}

func (m *Monitor) reconnect(ctx context.Context) {
	for i := 1; i <= m.cfg.ReconnectAttempts; i++ {
		m.mu.Lock()
		m.attempt = i
		m.mu.Unlock()

		slog.Info("reconnecting", "attempt", i, "module", "netmon")
		m.link.Disconnect(ctx)
		if m.link.Connect(ctx) {
			m.beginSession(ctx)
			return
		}
		if i < m.cfg.ReconnectAttempts && !sleep(ctx, m.cfg.ReconnectWait) {
			return
		}
	}
	slog.Warn("reconnect attempts exhausted", "attempts", m.cfg.ReconnectAttempts, "module", "netmon")
}

func (m *Monitor) beginSession(ctx context.Context) {
	if m.session == nil {
		return
	}
	if err := m.session.Begin(ctx); err != nil {
		slog.Error("failed to restart session", "error", err, "module", "netmon")
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failures returns the number of consecutive failed checks.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Attempt returns the reconnect attempt of the last recovery.
func (m *Monitor) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
