package netmon

import (
	"context"
	"errors"
)

// FakeLink is a scripted Link for tests.
type FakeLink struct {
	// Up is returned by Connected.
	Up bool

	// ConnectResults are consumed one per Connect call; when exhausted
	// Connect returns false. A successful Connect sets Up.
	ConnectResults []bool

	Connects    int
	Disconnects int
}

func (f *FakeLink) Connected(context.Context) bool {
	return f.Up
}

func (f *FakeLink) Connect(context.Context) bool {
	f.Connects++
	if len(f.ConnectResults) == 0 {
		return false
	}
	ok := f.ConnectResults[0]
	f.ConnectResults = f.ConnectResults[1:]
	if ok {
		f.Up = true
	}
	return ok
}

func (f *FakeLink) Disconnect(context.Context) {
	f.Disconnects++
	f.Up = false
}

// FakeProber fails the first Failures probes of every check run, or all of
// them when Down is set.
type FakeProber struct {
	Down     bool
	Failures int
	Probes   int
	Addrs    []string
	pending  int
}

func (f *FakeProber) Probe(_ context.Context, addr string) error {
	f.Probes++
	f.Addrs = append(f.Addrs, addr)
	if f.Down {
		return errors.New("unreachable")
	}
	if f.pending < f.Failures {
		f.pending++
		return errors.New("unreachable")
	}
	f.pending = 0
	return nil
}

// FakeSession counts Begin calls.
type FakeSession struct {
	Begins int
	Err    error
}

func (f *FakeSession) Begin(context.Context) error {
	f.Begins++
	return f.Err
}

// FakeRestarter counts restarts instead of restarting.
type FakeRestarter struct {
	Restarts int
}

func (f *FakeRestarter) Restart() error {
	f.Restarts++
	return nil
}
