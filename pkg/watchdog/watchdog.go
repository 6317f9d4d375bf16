// Package watchdog calls a handler when a stream goes quiet.
package watchdog

import (
	"context"
	"log/slog"
	"time"
)

// NewWatchdog calls stalled once each time input goes longer than timeout
// without a value. It returns when ctx is done or input is closed.
func NewWatchdog[T any](ctx context.Context, timeout time.Duration, stalled func() error, input <-chan T) func() error {
	return func() error {
		t := time.NewTimer(timeout)
		defer t.Stop()
		fired := false
		slog.Debug("watchdog started", "timeout", timeout, "module", "watchdog")
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-input:
				if !ok {
					return nil
				}
				fired = false
				if !t.Stop() {
					select {
					case <-t.C:
					default:
					}
				}
				t.Reset(timeout)
			case <-t.C:
				if !fired {
					slog.Error("watchdog timeout, no new input", "timeout", timeout, "module", "watchdog")
					if err := stalled(); err != nil {
						return err
					}
					fired = true
				}
				t.Reset(timeout)
			}
		}
	}
}
