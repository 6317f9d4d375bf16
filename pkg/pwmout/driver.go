// Package pwmout drives the pump's PWM input.
package pwmout

import (
	"log/slog"
	"sync"
)

const (
	Max = 255

	// DefaultHysteresis is how far a new output must move from the last
	// written value before the pin is touched again.
	DefaultHysteresis = 4
)

// AnalogWriter writes a raw 0-255 duty to the output pin.
type AnalogWriter interface {
	WriteAnalog(value int) error
}

// Driver converts a pump speed into the pump's inverted PWM polarity and
// suppresses writes that differ from the last one by no more than the
// hysteresis.
type Driver struct {
	out        AnalogWriter
	hysteresis int
	committed  int // last inverted value written to out
	mu         sync.Mutex
}

func NewDriver(out AnalogWriter, hysteresis int) *Driver {
	if hysteresis < 0 {
		hysteresis = DefaultHysteresis
	}
	return &Driver{
		out:        out,
		hysteresis: hysteresis,
	}
}

// Write requests a pump speed of desired (0 stopped, 255 full) and returns
// the speed now in effect.
func (d *Driver) Write(desired int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	desired = min(max(desired, 0), Max)
	inverted := Max - desired

	if abs(inverted-d.committed) > d.hysteresis {
		if err := d.out.WriteAnalog(inverted); err != nil {
			slog.Error("failed to set pwm output", "value", inverted, "error", err, "module", "pwmout")
			return Max - d.committed
		}
		d.committed = inverted
		slog.Info("setting pwm output", "value", inverted, "module", "pwmout")
	}
	return Max - d.committed
}

// Committed returns the speed currently in effect.
func (d *Driver) Committed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Max - d.committed
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
