package capping

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
)

const (
	// FloorPct is the lowest cap that may reach the output stage.
	FloorPct = 15

	MinPct     = 30
	MaxPct     = 100
	StepPct    = 5
	DefaultPct = 60

	dutyMax = 255
)

var ErrInvalidCap = errors.New("invalid cap")

type Policy struct{}

// Ceiling converts a cap percentage into a 0-255 duty ceiling. Percentages
// below FloorPct are raised to it.
func (Policy) Ceiling(capPct int) int {
	if capPct < FloorPct {
		slog.Warn("cap under floor, correcting", "cap", capPct, "floor", FloorPct, "module", "capping")
		capPct = FloorPct
	}
	return int(math.Round(float64(capPct) / 100 * dutyMax))
}

// Clamp returns candidate limited to the ceiling of capPct.
func (p Policy) Clamp(candidate, capPct int) int {
	ceiling := p.Ceiling(capPct)
	if candidate > ceiling {
		slog.Debug("max exceeded, capping", "candidate", candidate, "ceiling", ceiling, "module", "capping")
		return ceiling
	}
	return candidate
}

// Setting holds the latest accepted cap percentage. It has one writer, the
// command handler, and is read by the control loop on each tick.
type Setting struct {
	pct atomic.Int64
}

func NewSetting(defaultPct int) *Setting {
	s := &Setting{}
	s.pct.Store(int64(defaultPct))
	return s
}

func (s *Setting) Get() int {
	return int(s.pct.Load())
}

// Set stores pct if it lies within [MinPct, MaxPct] on a StepPct boundary.
func (s *Setting) Set(pct int) (int, error) {
	if err := Validate(pct); err != nil {
		return s.Get(), err
	}
	s.pct.Store(int64(pct))
	return pct, nil
}

func Validate(pct int) error {
	if pct < MinPct || pct > MaxPct {
		return fmt.Errorf("%w: %d outside %d-%d", ErrInvalidCap, pct, MinPct, MaxPct)
	}
	if pct%StepPct != 0 {
		return fmt.Errorf("%w: %d not a multiple of %d", ErrInvalidCap, pct, StepPct)
	}
	return nil
}
