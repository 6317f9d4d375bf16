package netmon

import (
	"context"
	"errors"
	"testing"
	"time"
)

type harness struct {
	link    *FakeLink
	prober  *FakeProber
	session *FakeSession
	restart *FakeRestarter
	mon     *Monitor
}

func newHarness(cfg Config) *harness {
	h := &harness{
		link:    &FakeLink{Up: true},
		prober:  &FakeProber{},
		session: &FakeSession{},
		restart: &FakeRestarter{},
	}
	h.mon = New(cfg, h.link, h.prober, h.session, h.restart.Restart)
	return h
}

func testConfig() Config {
	return Config{
		ProbeAddr:         "192.168.1.20:1883",
		ReconnectAttempts: DefaultReconnectAttempts,
		ReconnectWait:     0,
	}
}

func TestCheckHealthy(t *testing.T) {
	h := newHarness(testConfig())

	if got := h.mon.Check(context.Background()); got != Healthy {
		t.Errorf("got %v, want healthy", got)
	}
	if h.prober.Probes != 1 {
		t.Errorf("expected 1 probe, got %d", h.prober.Probes)
	}
	if h.prober.Addrs[0] != "192.168.1.20:1883" {
		t.Errorf("unexpected probe address %q", h.prober.Addrs[0])
	}
	if h.link.Connects != 0 {
		t.Errorf("expected no reconnect, got %d", h.link.Connects)
	}
}

func TestCheckProbeSucceedsOnLaterAttempt(t *testing.T) {
	h := newHarness(testConfig())
	h.prober.Failures = 4

	if got := h.mon.Check(context.Background()); got != Healthy {
		t.Errorf("got %v, want healthy", got)
	}
	if h.prober.Probes != 5 {
		t.Errorf("expected 5 probes, got %d", h.prober.Probes)
	}
}

func TestCheckAllProbesFail(t *testing.T) {
	h := newHarness(testConfig())
	h.prober.Down = true

	if got := h.mon.Check(context.Background()); got != Degraded {
		t.Errorf("got %v, want degraded", got)
	}
	if h.prober.Probes != DefaultProbeCount {
		t.Errorf("expected %d probes, got %d", DefaultProbeCount, h.prober.Probes)
	}
	if h.mon.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", h.mon.Failures())
	}
	if h.link.Disconnects != 0 || h.link.Connects != 0 {
		t.Errorf("link bounced with link up, got %d disconnects %d connects", h.link.Disconnects, h.link.Connects)
	}
	if h.session.Begins != 1 {
		t.Errorf("expected session restart, got %d", h.session.Begins)
	}
	if !h.link.Up {
		t.Error("link taken down")
	}
}

func TestBrokerDownKeepsLinkAcrossChecks(t *testing.T) {
	h := newHarness(testConfig())
	h.prober.Down = true

	for i := 0; i < 5; i++ {
		h.mon.Check(context.Background())
	}
	if h.link.Disconnects != 0 {
		t.Errorf("expected no link disconnects, got %d", h.link.Disconnects)
	}
	if h.session.Begins != 5 {
		t.Errorf("expected 5 session restarts, got %d", h.session.Begins)
	}
	if h.mon.Failures() != 5 {
		t.Errorf("expected 5 failures, got %d", h.mon.Failures())
	}
}

func TestCheckLinkDownSkipsProbes(t *testing.T) {
	h := newHarness(testConfig())
	h.link.Up = false

	if got := h.mon.Check(context.Background()); got != Degraded {
		t.Errorf("got %v, want degraded", got)
	}
	if h.prober.Probes != 0 {
		t.Errorf("expected no probes with link down, got %d", h.prober.Probes)
	}
}

func TestCheckWithoutProbeAddr(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeAddr = ""
	h := newHarness(cfg)
	h.prober.Down = true

	if got := h.mon.Check(context.Background()); got != Healthy {
		t.Errorf("got %v, want healthy", got)
	}
	if h.prober.Probes != 0 {
		t.Errorf("expected no probes, got %d", h.prober.Probes)
	}
}

func TestReconnectBudget(t *testing.T) {
	h := newHarness(testConfig())
	h.link.Up = false

	h.mon.Check(context.Background())
	if h.link.Connects != DefaultReconnectAttempts {
		t.Errorf("expected %d connect attempts, got %d", DefaultReconnectAttempts, h.link.Connects)
	}
	if h.mon.Attempt() != DefaultReconnectAttempts {
		t.Errorf("expected attempt %d, got %d", DefaultReconnectAttempts, h.mon.Attempt())
	}
	if h.session.Begins != 0 {
		t.Errorf("expected no session restart, got %d", h.session.Begins)
	}
}

func TestReconnectStopsOnSuccess(t *testing.T) {
	h := newHarness(testConfig())
	h.link.Up = false
	h.link.ConnectResults = []bool{false, true}

	h.mon.Check(context.Background())
	if h.link.Connects != 2 {
		t.Errorf("expected 2 connect attempts, got %d", h.link.Connects)
	}
	if h.session.Begins != 1 {
		t.Errorf("expected 1 session restart, got %d", h.session.Begins)
	}

	// The next check sees the restored link.
	if got := h.mon.Check(context.Background()); got != Healthy {
		t.Errorf("got %v, want healthy", got)
	}
	if h.mon.Failures() != 0 {
		t.Errorf("expected failures reset, got %d", h.mon.Failures())
	}
}

func TestSessionErrorIsAbsorbed(t *testing.T) {
	h := newHarness(testConfig())
	h.link.Up = false
	h.link.ConnectResults = []bool{true}
	h.session.Err = errors.New("simulated error")

	if got := h.mon.Check(context.Background()); got != Degraded {
		t.Errorf("got %v, want degraded", got)
	}
	if h.session.Begins != 1 {
		t.Errorf("expected 1 session restart, got %d", h.session.Begins)
	}
}

func TestRestartAfterThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.RebootThreshold = 10
	h := newHarness(cfg)
	h.link.Up = false

	for i := 1; i < 10; i++ {
		if got := h.mon.Check(context.Background()); got != Degraded {
			t.Fatalf("check %d: got %v, want degraded", i, got)
		}
		if h.restart.Restarts != 0 {
			t.Fatalf("check %d: restarted early", i)
		}
	}

	if got := h.mon.Check(context.Background()); got != Rebooting {
		t.Fatalf("got %v, want rebooting", got)
	}
	if h.restart.Restarts != 1 {
		t.Fatalf("expected 1 restart, got %d", h.restart.Restarts)
	}

	// Terminal: further checks neither restart again nor reconnect.
	connects := h.link.Connects
	for i := 0; i < 5; i++ {
		if got := h.mon.Check(context.Background()); got != Rebooting {
			t.Errorf("got %v, want rebooting", got)
		}
	}
	if h.restart.Restarts != 1 {
		t.Errorf("expected exactly 1 restart, got %d", h.restart.Restarts)
	}
	if h.link.Connects != connects {
		t.Errorf("reconnected after rebooting state")
	}
}

func TestRestartDefaultThreshold(t *testing.T) {
	h := newHarness(testConfig())
	h.link.Up = false

	for i := 0; i < DefaultRebootThreshold-1; i++ {
		h.mon.Check(context.Background())
	}
	if h.restart.Restarts != 0 {
		t.Fatalf("restarted before threshold")
	}
	h.mon.Check(context.Background())
	if h.restart.Restarts != 1 {
		t.Errorf("expected 1 restart after %d failures, got %d", DefaultRebootThreshold, h.restart.Restarts)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	h := newHarness(testConfig())
	h.prober.Down = true

	for i := 0; i < 99; i++ {
		h.link.Up = true
		h.mon.Check(context.Background())
	}
	if h.mon.Failures() != 99 {
		t.Fatalf("expected 99 failures, got %d", h.mon.Failures())
	}

	h.link.Up = true
	h.prober.Down = false
	if got := h.mon.Check(context.Background()); got != Healthy {
		t.Fatalf("got %v, want healthy", got)
	}

	h.prober.Down = true
	h.mon.Check(context.Background())
	if h.mon.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", h.mon.Failures())
	}
	if h.restart.Restarts != 0 {
		t.Errorf("expected no restart, got %d", h.restart.Restarts)
	}
}

func TestReconnectWaitHonoursContext(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectWait = time.Hour
	h := newHarness(cfg)
	h.link.Up = false

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		h.mon.Check(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("check did not return after cancellation")
	}
	if h.link.Connects != 1 {
		t.Errorf("expected 1 connect attempt, got %d", h.link.Connects)
	}
}

func TestRun(t *testing.T) {
	h := newHarness(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.mon.Run(ctx, time.Millisecond)() }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Healthy:   "healthy",
		Degraded:  "degraded",
		Rebooting: "rebooting",
		State(9):  "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("got %q, want %q", s.String(), want)
		}
	}
}
