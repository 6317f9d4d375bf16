package watchdog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdogFiresOncePerStall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	in := make(chan int)
	run := NewWatchdog(ctx, 10*time.Millisecond, func() error {
		calls.Add(1)
		return nil
	}, in)

	done := make(chan error)
	go func() { done <- run() }()

	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d after one stall, want 1", n)
	}

	in <- 1
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d after second stall, want 2", n)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestWatchdogQuietWhileFed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	in := make(chan int)
	run := NewWatchdog(ctx, 50*time.Millisecond, func() error {
		calls.Add(1)
		return nil
	}, in)
	go run()

	for i := 0; i < 10; i++ {
		in <- i
		time.Sleep(5 * time.Millisecond)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d while fed, want 0", n)
	}
}

func TestWatchdogReturnsHandlerError(t *testing.T) {
	want := errors.New("boom")
	run := NewWatchdog(context.Background(), time.Millisecond, func() error { return want }, make(chan int))
	if err := run(); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestWatchdogStopsOnClosedInput(t *testing.T) {
	in := make(chan int)
	close(in)
	run := NewWatchdog(context.Background(), time.Hour, func() error { return nil }, in)
	if err := run(); err != nil {
		t.Fatal(err)
	}
}
