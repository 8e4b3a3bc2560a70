package status

import (
	"time"

	"github.com/goccy/go-json"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	IntervalSeconds int32         `json:"telemetry_interval"`
	LED             bool          `json:"led_state"`
	Telemetry       []ReadingJSON `json:"telemetry"`
	Failures        int           `json:"telemetry_failures"`
	LastError       string        `json:"last_error,omitempty"`
	UptimeSeconds   int64         `json:"uptime_seconds"`
	StartTime       string        `json:"start_time"`
	Timestamp       string        `json:"timestamp"`
	MQTT            MQTTStatus    `json:"mqtt"`
	Network         *NetworkJSON  `json:"network,omitempty"`
	Config          ConfigJSON    `json:"config"`
}

// ReadingJSON is the JSON representation of a sensor's last reading.
type ReadingJSON struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
	Count     int     `json:"count"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected     bool   `json:"connected"`
	Hub           string `json:"hub"`
	BufferDropped int    `json:"buffer_dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Hub      string `json:"hub"`
	DeviceID string `json:"device_id"`
	ModelID  string `json:"model_id"`
	HTTPAddr string `json:"http_addr"`
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		IntervalSeconds: snap.IntervalSeconds,
		LED:             snap.LED,
		Telemetry:       make([]ReadingJSON, 0, len(snap.Readings)),
		Failures:        snap.Failures,
		LastError:       snap.LastError,
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Hub: snap.Config.Hub, BufferDropped: snap.BufferDropped},
		Config: ConfigJSON{
			Hub:      snap.Config.Hub,
			DeviceID: snap.Config.DeviceID,
			ModelID:  snap.Config.ModelID,
			HTTPAddr: snap.Config.HTTPAddr,
		},
	}

	for _, r := range snap.Readings {
		inner.Telemetry = append(inner.Telemetry, ReadingJSON{
			Name:      r.Name,
			Value:     r.Value,
			Timestamp: r.At.UTC().Format(time.RFC3339),
			Count:     r.Count,
		})
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
