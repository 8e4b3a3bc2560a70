// Package device holds the devkit's control logic: the round-robin telemetry
// scheduler and the command/property dispatcher. It has no knowledge of
// MQTT or hardware beyond the small interfaces it consumes.
package device

import (
	"sync"
	"time"
)

// DefaultIntervalSeconds is the telemetry period until the cloud sets one.
const DefaultIntervalSeconds int32 = 10

// State is shared between the scheduler and the dispatcher. The dispatcher
// writes the interval and LED state; the scheduler writes the round-robin
// index. Every access goes through the mutex.
type State struct {
	mu       sync.Mutex
	interval int32 // seconds
	led      bool
	index    int

	// wake holds at most one pending "interval changed" signal.
	wake chan struct{}
}

// NewState creates state with the given interval; values < 1 use the default.
func NewState(intervalSeconds int32) *State {
	if intervalSeconds < 1 {
		intervalSeconds = DefaultIntervalSeconds
	}
	return &State{
		interval: intervalSeconds,
		wake:     make(chan struct{}, 1),
	}
}

// IntervalSeconds returns the telemetry period in seconds.
func (s *State) IntervalSeconds() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Interval returns the telemetry period.
func (s *State) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds()) * time.Second
}

// SetInterval stores a new period and wakes the scheduler.
func (s *State) SetInterval(seconds int32) {
	s.mu.Lock()
	s.interval = seconds
	s.mu.Unlock()
	s.signal()
}

// LED returns the last LED state applied by a command.
func (s *State) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

func (s *State) setLED(on bool) {
	s.mu.Lock()
	s.led = on
	s.mu.Unlock()
}

// Index returns the round-robin position of the next sensor to sample.
func (s *State) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// advance returns the current index and moves it to (index+1) mod n.
func (s *State) advance(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index
	s.index = (i + 1) % n
	return i
}

// Wake is signalled when the interval changes. Receiving clears the signal.
func (s *State) Wake() <-chan struct{} {
	return s.wake
}

// signal sets the wake flag; repeated signals before a receive coalesce.
func (s *State) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
