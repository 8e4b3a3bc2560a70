package sensor

import (
	"fmt"
	"sync"
)

// FakeBoard is a test double that returns scripted sensor values.
type FakeBoard struct {
	mu sync.Mutex

	names  []string
	values map[string][]float64
	index  map[string]int

	// Reads counts calls to each sensor's Read.
	Reads map[string]int

	// Errors, if set for a name, is returned by that sensor's Read.
	Errors map[string]error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBoard creates a FakeBoard with the given sensor names in order.
// Every sensor reads 0 until values are scripted with SetValues.
func NewFakeBoard(names ...string) *FakeBoard {
	return &FakeBoard{
		names:  names,
		values: make(map[string][]float64),
		index:  make(map[string]int),
		Reads:  make(map[string]int),
		Errors: make(map[string]error),
	}
}

// SetValues scripts the values returned by the named sensor.
// Each Read consumes the next value; the last one repeats.
func (f *FakeBoard) SetValues(name string, values ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = values
	f.index[name] = 0
}

// SetError makes the named sensor fail with err (nil clears it).
func (f *FakeBoard) SetError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errors, name)
		return
	}
	f.Errors[name] = err
}

// ReadCount returns how many times the named sensor was read.
func (f *FakeBoard) ReadCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads[name]
}

// Sensors returns one Sensor per configured name.
func (f *FakeBoard) Sensors() []Sensor {
	sensors := make([]Sensor, 0, len(f.names))
	for _, name := range f.names {
		name := name
		sensors = append(sensors, Sensor{
			Name: name,
			Read: func() (float64, error) { return f.read(name) },
		})
	}
	return sensors
}

func (f *FakeBoard) read(name string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads[name]++
	if err := f.Errors[name]; err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}

	values := f.values[name]
	if len(values) == 0 {
		return 0, nil
	}
	i := f.index[name]
	if i < len(values)-1 {
		f.index[name] = i + 1
	}
	return values[i], nil
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
