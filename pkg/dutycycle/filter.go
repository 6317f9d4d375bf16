package dutycycle

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultSampleCount   = 20
	DefaultSampleSpacing = 10 * time.Millisecond
)

// Reading is one smoothed input duty cycle.
type Reading struct {
	Duty     int
	StdDev   float64
	Timeouts int
	Time     time.Time
}

type Filter struct {
	sampler *Sampler
	count   int
	spacing time.Duration
	last    Reading
	now     func() time.Time
}

func NewFilter(sampler *Sampler, count int, spacing time.Duration) *Filter {
	if count <= 0 {
		count = DefaultSampleCount
	}
	if spacing < 0 {
		spacing = DefaultSampleSpacing
	}
	return &Filter{
		sampler: sampler,
		count:   count,
		spacing: spacing,
		now:     time.Now,
	}
}

// FilteredSample takes a batch of samples and returns their rounded mean. The
// spacing between samples keeps the batch from landing inside one PWM period.
// If ctx is cancelled mid-batch the samples taken so far are used.
func (f *Filter) FilteredSample(ctx context.Context) Reading {
	values := make([]float64, 0, f.count)
	timeouts := 0
	for i := 0; i < f.count; i++ {
		if i > 0 && !sleep(ctx, f.spacing) {
			break
		}
		duty, timedOut := f.sampler.sample()
		if timedOut {
			timeouts++
		}
		values = append(values, float64(duty))
	}
	if len(values) == 0 {
		return f.last
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	f.last = Reading{
		Duty:     int(math.Round(mean)),
		StdDev:   std,
		Timeouts: timeouts,
		Time:     f.now(),
	}
	return f.last
}

// FilterChannel runs FilteredSample every interval and sends each Reading on
// the returned channel.
func FilterChannel(ctx context.Context, f *Filter, interval time.Duration) (<-chan Reading, func() error) {
	c := make(chan Reading, 1)
	ctx, cancelFunc := context.WithCancel(ctx)
	return c, func() error {
		defer cancelFunc()
		defer close(c)
		done := ctx.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				r := f.FilteredSample(ctx)
				slog.Debug("pwm incoming", "duty", r.Duty, "stddev", r.StdDev, "timeouts", r.Timeouts, "module", "dutycycle")
				select {
				case c <- r:
				case <-done:
					return nil
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
