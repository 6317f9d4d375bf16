// Package pwmin captures the boiler's PWM signal from edge timestamps.
// Edges are timestamped by the kernel and accumulated in the background, so a
// pulse measurement only waits for the next completed phase instead of busy
// polling the line.
package pwmin

import (
	"errors"
	"sync"
	"time"
)

var ErrUnsupported = errors.New("pwmin: not supported on this platform (requires Linux)")

type valuer interface {
	Value() (int, error)
}

// EdgeCapture implements dutycycle.PulseReader.
type EdgeCapture struct {
	line valuer
	high chan time.Duration
	low  chan time.Duration

	mu         sync.Mutex
	seen       bool
	lastRising bool
	lastTs     time.Duration
}

func newEdgeCapture(line valuer) *EdgeCapture {
	return &EdgeCapture{
		line: line,
		high: make(chan time.Duration, 1),
		low:  make(chan time.Duration, 1),
	}
}

// handleEdge records an edge event. A rising edge ends a low phase and a
// falling edge ends a high phase. Two edges of the same kind in a row mean an
// edge was lost, so the second one only restarts the measurement.
func (c *EdgeCapture) handleEdge(rising bool, ts time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen && rising != c.lastRising && ts > c.lastTs {
		d := ts - c.lastTs
		if rising {
			replace(c.low, d)
		} else {
			replace(c.high, d)
		}
	}
	c.seen = true
	c.lastRising = rising
	c.lastTs = ts
}

func replace(ch chan time.Duration, d time.Duration) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- d:
	default:
	}
}

// MeasurePulse waits for the next phase of the given level to complete.
func (c *EdgeCapture) MeasurePulse(high bool, timeout time.Duration) time.Duration {
	ch := c.low
	if high {
		ch = c.high
	}
	// Drop a phase that completed before the call.
	select {
	case <-ch:
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case d := <-ch:
		return d
	case <-t.C:
		return 0
	}
}

func (c *EdgeCapture) ReadLevel() (bool, error) {
	v, err := c.line.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
