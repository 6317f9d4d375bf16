//go:build linux

package pwmin

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

// Open requests the PWM input line with edge detection on both edges.
func Open(chip string, offset int) (*EdgeCapture, error) {
	c := newEdgeCapture(nil)
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			c.handleEdge(evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request pwm input line %s:%d: %w", chip, offset, err)
	}
	c.line = line
	return c, nil
}

// Close releases the line.
func (c *EdgeCapture) Close() error {
	line, ok := c.line.(io.Closer)
	if !ok {
		return nil
	}
	if err := line.Close(); err != nil {
		return fmt.Errorf("close pwm input: %w", err)
	}
	return nil
}
