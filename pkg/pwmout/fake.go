package pwmout

// FakeWriter records analog writes for test assertions.
type FakeWriter struct {
	// Writes contains every value passed to WriteAnalog.
	Writes []int

	// WriteError, if set, is returned by WriteAnalog and the write is not
	// recorded.
	WriteError error

	// Halted tracks if Halt was called.
	Halted bool
}

func (f *FakeWriter) WriteAnalog(value int) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, value)
	return nil
}

func (f *FakeWriter) Halt() error {
	f.Halted = true
	return nil
}

// Last returns the last written value, or -1 if nothing was written.
func (f *FakeWriter) Last() int {
	if len(f.Writes) == 0 {
		return -1
	}
	return f.Writes[len(f.Writes)-1]
}
