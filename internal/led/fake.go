package led

import "sync"

// FakeLED is a test double that records every state written.
type FakeLED struct {
	mu sync.Mutex

	// States contains every value passed to Set, in order.
	States []bool

	// SetError, if set, will be returned by Set. The state is still recorded.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLED creates a FakeLED for testing.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Set records the requested state.
func (f *FakeLED) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States = append(f.States, on)
	return f.SetError
}

// On reports the last state written (false if never set).
func (f *FakeLED) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.States) == 0 {
		return false
	}
	return f.States[len(f.States)-1]
}

// Writes returns the number of Set calls.
func (f *FakeLED) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.States)
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded state.
func (f *FakeLED) Reset() {
	f.mu.Lock()
	f.States = nil
	f.SetError = nil
	f.Closed = false
	f.mu.Unlock()
}
