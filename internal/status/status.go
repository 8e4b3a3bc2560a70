// Package status provides a thread-safe status tracker for the devkit daemon.
// It is fed by the device as an observer and read by the HTTP status page.
package status

import (
	"sort"
	"sync"
	"time"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Hub      string
	DeviceID string
	ModelID  string
	HTTPAddr string
}

// Reading is the last published value of one sensor.
type Reading struct {
	Name  string
	Value float64
	At    time.Time
	Count int // successful publishes since startup
}

// Snapshot is a point-in-time view of daemon state.
// It is a copy and safe to use after the lock is released.
type Snapshot struct {
	IntervalSeconds int32
	LED             bool
	Readings        []Reading // sorted by name
	Failures        int
	LastError       string
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	BufferDropped   int // messages lost while offline
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	readings  map[string]Reading
	connected func() bool
	dropped   func() int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		readings: make(map[string]Reading),
	}
}

// TelemetryPublished records a successful publish.
func (t *Tracker) TelemetryPublished(name string, value float64, at time.Time) {
	t.mu.Lock()
	r := t.readings[name]
	t.readings[name] = Reading{Name: name, Value: value, At: at, Count: r.Count + 1}
	t.mu.Unlock()
}

// TelemetryFailed records a failed read or publish.
func (t *Tracker) TelemetryFailed(name string, err error) {
	t.mu.Lock()
	t.snap.Failures++
	t.snap.LastError = name + ": " + err.Error()
	t.mu.Unlock()
}

// IntervalChanged records the telemetry period.
func (t *Tracker) IntervalChanged(seconds int32) {
	t.mu.Lock()
	t.snap.IntervalSeconds = seconds
	t.mu.Unlock()
}

// LEDChanged records the LED state.
func (t *Tracker) LEDChanged(on bool) {
	t.mu.Lock()
	t.snap.LED = on
	t.mu.Unlock()
}

// SetConnectionStatus installs a probe queried on every snapshot.
func (t *Tracker) SetConnectionStatus(connected func() bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()
}

// SetDropCounter installs a probe for the offline buffer's drop count.
func (t *Tracker) SetDropCounter(dropped func() int) {
	t.mu.Lock()
	t.dropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Readings = make([]Reading, 0, len(t.readings))
	for _, r := range t.readings {
		s.Readings = append(s.Readings, r)
	}
	connected := t.connected
	dropped := t.dropped
	t.mu.RUnlock()

	sort.Slice(s.Readings, func(i, j int) bool { return s.Readings[i].Name < s.Readings[j].Name })
	if connected != nil {
		s.MQTTConnected = connected()
	}
	if dropped != nil {
		s.BufferDropped = dropped()
	}
	s.Now = time.Now()
	return s
}
