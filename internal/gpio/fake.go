package gpio

// FakePins is a test double holding latched line levels in memory.
type FakePins struct {
	// State is the current level of each line. Tests seed it with the
	// pattern "left behind" by a previous run.
	State [2]int

	// Writes records every pattern passed to Write, in order.
	Writes [][2]int

	// Reads counts calls to Read.
	Reads int

	// Stuck makes Write record the pattern without changing State.
	Stuck bool

	// ReadError and WriteError, if set, are returned by Read and Write.
	ReadError  error
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePins creates FakePins latched at initial.
func NewFakePins(initial [2]int) *FakePins {
	return &FakePins{State: initial}
}

// Read returns the latched state.
func (f *FakePins) Read() ([2]int, error) {
	f.Reads++
	if f.ReadError != nil {
		return [2]int{}, f.ReadError
	}
	return f.State, nil
}

// Write records values and latches them unless Stuck is set.
func (f *FakePins) Write(values [2]int) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, values)
	if !f.Stuck {
		f.State = values
	}
	return nil
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// LastWrite returns the most recent pattern written and whether any write
// happened.
func (f *FakePins) LastWrite() ([2]int, bool) {
	if len(f.Writes) == 0 {
		return [2]int{}, false
	}
	return f.Writes[len(f.Writes)-1], true
}
