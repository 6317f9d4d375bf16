package pwmout

import (
	"errors"
	"testing"
)

func TestDriverInitialState(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, DefaultHysteresis)

	if got := d.Committed(); got != Max {
		t.Errorf("got %d, want %d before any write", got, Max)
	}
	// Full speed is already what a low pin means.
	if got := d.Write(255); got != 255 {
		t.Errorf("got %d, want 255", got)
	}
	if len(w.Writes) != 0 {
		t.Errorf("expected no physical write, got %v", w.Writes)
	}
}

func TestDriverInverts(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, DefaultHysteresis)

	if got := d.Write(100); got != 100 {
		t.Errorf("got %d, want 100", got)
	}
	if w.Last() != 155 {
		t.Errorf("got physical write %d, want 155", w.Last())
	}
}

func TestDriverHysteresisScenario(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, DefaultHysteresis)

	// Commit inverted 100.
	if got := d.Write(155); got != 155 {
		t.Fatalf("got %d, want 155", got)
	}
	if w.Last() != 100 {
		t.Fatalf("got physical write %d, want 100", w.Last())
	}

	// inverted 103 is within 4 of 100
	if got := d.Write(152); got != 155 {
		t.Errorf("got %d, want 155", got)
	}
	if len(w.Writes) != 1 {
		t.Errorf("expected 1 physical write, got %v", w.Writes)
	}
}

func TestDriverHysteresisBoundary(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, DefaultHysteresis)
	d.Write(155) // inverted 100

	for _, desired := range []int{151, 152, 153, 154, 155, 156, 157, 158, 159} {
		if got := d.Write(desired); got != 155 {
			t.Errorf("Write(%d): got %d, want 155", desired, got)
		}
	}
	if len(w.Writes) != 1 {
		t.Fatalf("expected 1 physical write, got %v", w.Writes)
	}

	// inverted 105 is 5 away
	if got := d.Write(150); got != 150 {
		t.Errorf("got %d, want 150", got)
	}
	if w.Last() != 105 {
		t.Errorf("got physical write %d, want 105", w.Last())
	}
	// inverted 95 is 10 away from the new committed value
	if got := d.Write(160); got != 160 {
		t.Errorf("got %d, want 160", got)
	}
}

func TestDriverClampsRange(t *testing.T) {
	tests := []struct {
		desired   int
		wantOut   int
		wantWrite int
	}{
		{-50, 0, 255},
		{400, 255, 0},
	}
	for _, tt := range tests {
		w := &FakeWriter{}
		d := NewDriver(w, DefaultHysteresis)
		d.Write(128)

		if got := d.Write(tt.desired); got != tt.wantOut {
			t.Errorf("Write(%d): got %d, want %d", tt.desired, got, tt.wantOut)
		}
		if w.Last() != tt.wantWrite {
			t.Errorf("Write(%d): got physical write %d, want %d", tt.desired, w.Last(), tt.wantWrite)
		}
	}
}

func TestDriverWriteError(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, DefaultHysteresis)
	d.Write(155)

	w.WriteError = errors.New("simulated error")
	if got := d.Write(50); got != 155 {
		t.Errorf("got %d, want committed 155 after failed write", got)
	}
	if got := d.Committed(); got != 155 {
		t.Errorf("committed changed to %d after failed write", got)
	}
}

func TestDriverZeroHysteresis(t *testing.T) {
	w := &FakeWriter{}
	d := NewDriver(w, 0)
	d.Write(200)
	d.Write(201)
	d.Write(201)

	if len(w.Writes) != 2 {
		t.Errorf("expected 2 physical writes, got %v", w.Writes)
	}
}
