// Package control ties the input filter, the cap policy and the output
// driver together on the output cadence.
package control

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mikesmitty/pump-cap/pkg/capping"
	"github.com/mikesmitty/pump-cap/pkg/dutycycle"
)

// Values are published after every output update.
type Values struct {
	InputDuty  int
	InputPct   int
	OutputDuty int
	OutputPct  int
	Cap        int
}

type Telemetry interface {
	PublishValues(Values)
}

type Driver interface {
	Write(desired int) int
}

type Loop struct {
	setting   *capping.Setting
	policy    capping.Policy
	driver    Driver
	telemetry Telemetry

	latest int
	stale  atomic.Bool
}

// NewLoop returns a loop that runs the pump at the cap until the first reading
// arrives.
func NewLoop(setting *capping.Setting, driver Driver, telemetry Telemetry) *Loop {
	l := &Loop{
		setting:   setting,
		driver:    driver,
		telemetry: telemetry,
	}
	l.stale.Store(true)
	return l
}

// Run stores each reading as it arrives and updates the output every
// interval until ctx is done or readings is closed.
func (l *Loop) Run(ctx context.Context, interval time.Duration, readings <-chan dutycycle.Reading) func() error {
	return func() error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case r, ok := <-readings:
				if !ok {
					return nil
				}
				// Apply the first reading after a stall right away.
				if l.Update(r) {
					l.Step()
				}
			case <-t.C:
				l.Step()
			}
		}
	}
}

// Update stores the latest filtered input and reports whether the loop was
// stale before it.
func (l *Loop) Update(r dutycycle.Reading) bool {
	l.latest = r.Duty
	if l.stale.Swap(false) {
		slog.Info("pwm input reading received", "duty", r.Duty, "module", "control")
		return true
	}
	return false
}

// MarkStale makes the loop ignore the last reading until a new one arrives,
// running the pump at the cap instead.
func (l *Loop) MarkStale() error {
	if !l.stale.Swap(true) {
		slog.Warn("pwm input readings stalled, running at cap", "module", "control")
	}
	return nil
}

// Step runs one output update.
func (l *Loop) Step() Values {
	input := l.latest
	candidate := input
	if l.stale.Load() {
		candidate = dutycycle.Max
	}
	capPct := l.setting.Get()
	out := l.driver.Write(l.policy.Clamp(candidate, capPct))

	v := Values{
		InputDuty:  input,
		InputPct:   dutycycle.Percent(input),
		OutputDuty: out,
		OutputPct:  dutycycle.Percent(out),
		Cap:        capPct,
	}
	slog.Debug("output updated", "input", v.InputDuty, "output", v.OutputDuty, "cap", v.Cap, "module", "control")
	if l.telemetry != nil {
		l.telemetry.PublishValues(v)
	}
	return v
}
