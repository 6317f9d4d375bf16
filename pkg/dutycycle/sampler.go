package dutycycle

import (
	"log/slog"
	"math"
	"time"
)

const (
	Max = 255

	DefaultPulseTimeout = 10 * time.Millisecond
)

// PulseReader is the PWM input line.
type PulseReader interface {
	// MeasurePulse returns the duration of the next complete pulse at the
	// given level, or 0 if none completed within timeout.
	MeasurePulse(high bool, timeout time.Duration) time.Duration
	// ReadLevel returns the instantaneous level of the line.
	ReadLevel() (bool, error)
}

type Sampler struct {
	in      PulseReader
	timeout time.Duration
}

func NewSampler(in PulseReader, timeout time.Duration) *Sampler {
	if timeout <= 0 {
		timeout = DefaultPulseTimeout
	}
	return &Sampler{
		in:      in,
		timeout: timeout,
	}
}

// Sample measures one PWM period and returns its inverted duty cycle, 0 for a
// stopped pump and 255 for full speed. A line that doesn't toggle within the
// timeout is reported as 0 or 255 depending on its current level.
func (s *Sampler) Sample() int {
	duty, _ := s.sample()
	return duty
}

func (s *Sampler) sample() (int, bool) {
	high := s.in.MeasurePulse(true, s.timeout)
	low := s.in.MeasurePulse(false, s.timeout)
	if high == 0 || low == 0 {
		level, err := s.in.ReadLevel()
		if err != nil {
			slog.Error("pwm input level read failed", "error", err, "module", "dutycycle")
		}
		if level {
			return Max, true
		}
		return 0, true
	}
	return Invert(high, low), false
}

// Invert converts the measured high and low phases into the 0-255 target
// convention, where a mostly-high input maps to a low value.
func Invert(high, low time.Duration) int {
	r := Max - float64(high)*Max/float64(high+low)
	return int(math.Round(r))
}

// Percent converts a 0-255 duty into a rounded percentage.
func Percent(duty int) int {
	return int(math.Round(float64(duty) * 100 / Max))
}
