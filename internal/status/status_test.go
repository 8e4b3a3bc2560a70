package status

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Hub: "myhub.azure-devices.net", DeviceID: "devkit-01", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DeviceID != "devkit-01" {
		t.Errorf("Config.DeviceID: got %q, want devkit-01", snap.Config.DeviceID)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Readings) != 0 {
		t.Errorf("expected no readings initially, got %d", len(snap.Readings))
	}
}

func TestTelemetryPublished(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.TelemetryPublished("temperature", 21.5, at)
	tr.TelemetryPublished("temperature", 22.0, at.Add(time.Minute))
	tr.TelemetryPublished("humidity", 40, at)

	snap := tr.Snapshot()
	if len(snap.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(snap.Readings))
	}
	// Sorted by name
	if snap.Readings[0].Name != "humidity" || snap.Readings[1].Name != "temperature" {
		t.Errorf("unexpected order: %+v", snap.Readings)
	}
	temp := snap.Readings[1]
	if temp.Value != 22.0 || temp.Count != 2 || !temp.At.Equal(at.Add(time.Minute)) {
		t.Errorf("unexpected temperature reading: %+v", temp)
	}
}

func TestTelemetryFailed(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.TelemetryFailed("pressure", errors.New("i2c nack"))
	tr.TelemetryFailed("magnetic", errors.New("timeout"))

	snap := tr.Snapshot()
	if snap.Failures != 2 {
		t.Errorf("Failures: got %d, want 2", snap.Failures)
	}
	if snap.LastError != "magnetic: timeout" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestIntervalAndLED(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.IntervalChanged(30)
	tr.LEDChanged(true)

	snap := tr.Snapshot()
	if snap.IntervalSeconds != 30 {
		t.Errorf("IntervalSeconds: got %d, want 30", snap.IntervalSeconds)
	}
	if !snap.LED {
		t.Error("expected LED=true")
	}
}

func TestConnectionStatusProbe(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	connected := false
	tr.SetConnectionStatus(func() bool { return connected })

	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
	connected = true
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestDropCounterProbe(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	if got := tr.Snapshot().BufferDropped; got != 0 {
		t.Errorf("expected 0 dropped without a probe, got %d", got)
	}

	dropped := 0
	tr.SetDropCounter(func() int { return dropped })
	dropped = 7

	snap := tr.Snapshot()
	if snap.BufferDropped != 7 {
		t.Errorf("expected 7 dropped, got %d", snap.BufferDropped)
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.MQTT.BufferDropped != 7 {
		t.Errorf("expected buffer_dropped 7 in JSON, got %d", sj.Status.MQTT.BufferDropped)
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("unexpected network: %+v", snap.Network)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.TelemetryPublished("temperature", 1, time.Now())

	snap := tr.Snapshot()
	snap.Readings[0].Value = 99

	if tr.Snapshot().Readings[0].Value != 1 {
		t.Error("snapshot mutation leaked into tracker")
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.TelemetryPublished("temperature", float64(i), time.Now())
			tr.IntervalChanged(int32(i + 1))
		}(i)
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Readings[0].Count; got != 10 {
		t.Errorf("Count: got %d, want 10", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Hub: "myhub.azure-devices.net", DeviceID: "devkit-01", ModelID: "dtmi:com:example:azurertos:gsg;1", HTTPAddr: ":80"})
	tr.IntervalChanged(10)
	tr.LEDChanged(true)
	tr.TelemetryPublished("pressure", 1013.25, start.Add(time.Minute))
	tr.SetNetwork(&NetworkInfo{Type: "ethernet", Status: "connected"})

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := sj.Status
	if s.IntervalSeconds != 10 || !s.LED {
		t.Errorf("unexpected interval/led: %d %v", s.IntervalSeconds, s.LED)
	}
	if len(s.Telemetry) != 1 || s.Telemetry[0].Name != "pressure" || s.Telemetry[0].Value != 1013.25 {
		t.Errorf("unexpected telemetry: %+v", s.Telemetry)
	}
	if s.Telemetry[0].Timestamp != "2026-01-01T00:01:00Z" {
		t.Errorf("unexpected reading timestamp: %s", s.Telemetry[0].Timestamp)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("unexpected start time: %s", s.StartTime)
	}
	if s.Config.ModelID != "dtmi:com:example:azurertos:gsg;1" {
		t.Errorf("unexpected model id: %s", s.Config.ModelID)
	}
	if s.Network == nil || s.Network.Type != "ethernet" {
		t.Errorf("unexpected network: %+v", s.Network)
	}
}

func TestFormatJSONEmptyTelemetryIsArray(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["telemetry"].([]any); !ok {
		t.Errorf("telemetry should be an empty array, got %v", raw["status"]["telemetry"])
	}
	if _, ok := raw["status"]["network"]; ok {
		t.Error("network should be omitted when nil")
	}
}
