// Package relay drives the optional secondary relay output.
package relay

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type Relay struct {
	pin   gpio.PinOut
	state bool
	mu    sync.Mutex
}

// New looks up the named pin and switches the relay off.
func New(name string) (*Relay, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to find relay pin %s", name)
	}
	return NewWithPin(p)
}

func NewWithPin(p gpio.PinOut) (*Relay, error) {
	r := &Relay{pin: p}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set relay pin low: %w", err)
	}
	slog.Info("relay setup default", "state", false, "module", "relay")
	return r, nil
}

// Set switches the relay and returns the state now applied.
func (r *Relay) Set(on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := r.pin.Out(level); err != nil {
		slog.Error("failed to set relay", "state", on, "error", err, "module", "relay")
		return r.state
	}
	r.state = on
	slog.Info("relay set", "state", level, "module", "relay")
	return r.state
}

func (r *Relay) On() {
	r.Set(true)
}

func (r *Relay) Off() {
	r.Set(false)
}

func (r *Relay) State() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
