package dutycycle

import "time"

// Pulse is one scripted PWM period. A zero phase simulates a timeout.
type Pulse struct {
	High time.Duration
	Low  time.Duration
}

// FakePulseReader is a test double that returns scripted pulses.
type FakePulseReader struct {
	// Pulses are consumed one per high/low measurement pair. When exhausted
	// the last pulse repeats.
	Pulses []Pulse

	// Level is returned by ReadLevel.
	Level bool

	// LevelError, if set, is returned by ReadLevel.
	LevelError error

	// Timeouts records the timeout passed to each MeasurePulse call.
	Timeouts []time.Duration

	index int
}

func NewFakePulseReader(pulses ...Pulse) *FakePulseReader {
	return &FakePulseReader{Pulses: pulses}
}

func (f *FakePulseReader) MeasurePulse(high bool, timeout time.Duration) time.Duration {
	f.Timeouts = append(f.Timeouts, timeout)
	if len(f.Pulses) == 0 {
		return 0
	}
	p := f.Pulses[f.index]
	if high {
		return p.High
	}
	if f.index < len(f.Pulses)-1 {
		f.index++
	}
	return p.Low
}

func (f *FakePulseReader) ReadLevel() (bool, error) {
	if f.LevelError != nil {
		return false, f.LevelError
	}
	return f.Level, nil
}
