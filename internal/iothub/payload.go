package iothub

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Topic prefixes and filters of the IoT Hub MQTT surface.
const (
	methodRequestPrefix = "$iothub/methods/POST/"
	methodRequestFilter = "$iothub/methods/POST/#"
	methodResponseFmt   = "$iothub/methods/res/%d/?$rid=%s"

	twinGetFmt         = "$iothub/twin/GET/?$rid=%s"
	twinResponsePrefix = "$iothub/twin/res/"
	twinResponseFilter = "$iothub/twin/res/#"
	twinReportedFmt    = "$iothub/twin/PATCH/properties/reported/?$rid=%s"
	twinDesiredPrefix  = "$iothub/twin/PATCH/properties/desired/"
	twinDesiredFilter  = "$iothub/twin/PATCH/properties/desired/#"

	versionKey = "$version"
)

// TelemetryTopic returns the device-to-cloud topic for a device, tagged as UTF-8 JSON.
func TelemetryTopic(deviceID string) string {
	return "devices/" + deviceID + "/messages/events/$.ct=application%2Fjson&$.ce=utf-8"
}

// MethodResponseTopic returns the topic for answering the method request rid.
func MethodResponseTopic(status int, rid string) string {
	return fmt.Sprintf(methodResponseFmt, status, rid)
}

// TwinGetTopic returns the topic for requesting the full twin.
func TwinGetTopic(rid string) string {
	return fmt.Sprintf(twinGetFmt, rid)
}

// TwinReportedTopic returns the topic for a reported-properties patch.
func TwinReportedTopic(rid string) string {
	return fmt.Sprintf(twinReportedFmt, rid)
}

// FormatTelemetry creates the JSON payload for one reading.
func FormatTelemetry(name string, value float64) ([]byte, error) {
	return json.Marshal(map[string]float64{name: value})
}

// FormatReported creates a reported-properties patch with a single value.
func FormatReported(name string, value any) ([]byte, error) {
	return json.Marshal(map[string]any{name: value})
}

// WritableAck is the Plug and Play acknowledgment of a writable property.
type WritableAck struct {
	Value   any   `json:"value"`
	Status  int   `json:"ac"`
	Version int64 `json:"av"`
}

// FormatWritableAck creates the reported patch acknowledging a writable property.
func FormatWritableAck(name string, value any, status int, version int64) ([]byte, error) {
	return json.Marshal(map[string]WritableAck{
		name: {Value: value, Status: status, Version: version},
	})
}

// splitTopic separates "<path>/?<query>" and parses the query.
func splitTopic(topic string) (string, url.Values, error) {
	path, query, _ := strings.Cut(topic, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", nil, fmt.Errorf("parse topic query %q: %w", topic, err)
	}
	return strings.TrimSuffix(path, "/"), values, nil
}

// parseMethodTopic extracts the method name and request id from a method request topic.
func parseMethodTopic(topic string) (name, rid string, err error) {
	if !strings.HasPrefix(topic, methodRequestPrefix) {
		return "", "", fmt.Errorf("not a method topic: %q", topic)
	}
	path, q, err := splitTopic(strings.TrimPrefix(topic, methodRequestPrefix))
	if err != nil {
		return "", "", err
	}
	if path == "" {
		return "", "", fmt.Errorf("method topic without name: %q", topic)
	}
	rid = q.Get("$rid")
	if rid == "" {
		return "", "", fmt.Errorf("method topic without $rid: %q", topic)
	}
	return path, rid, nil
}

// parseTwinResponseTopic extracts the status and request id from a twin response topic.
func parseTwinResponseTopic(topic string) (status int, rid string, err error) {
	if !strings.HasPrefix(topic, twinResponsePrefix) {
		return 0, "", fmt.Errorf("not a twin response topic: %q", topic)
	}
	path, q, err := splitTopic(strings.TrimPrefix(topic, twinResponsePrefix))
	if err != nil {
		return 0, "", err
	}
	status, err = strconv.Atoi(path)
	if err != nil {
		return 0, "", fmt.Errorf("twin response status %q: %w", path, err)
	}
	return status, q.Get("$rid"), nil
}

// parseDesiredTopicVersion returns the $version carried on a desired patch
// topic, or -1 if absent.
func parseDesiredTopicVersion(topic string) int64 {
	_, q, err := splitTopic(strings.TrimPrefix(topic, twinDesiredPrefix))
	if err != nil {
		return -1
	}
	v, err := strconv.ParseInt(q.Get(versionKey), 10, 64)
	if err != nil {
		return -1
	}
	return v
}

// ParseDesired splits a desired-properties object into properties sorted by
// name. Metadata keys ($version, $metadata, ...) are skipped; the object's
// $version is attached to each property, or fallbackVersion if it has none.
func ParseDesired(data []byte, fallbackVersion int64) ([]Property, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse desired properties: %w", err)
	}

	version := fallbackVersion
	if v, ok := raw[versionKey]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return nil, fmt.Errorf("parse %s: %w", versionKey, err)
		}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if strings.HasPrefix(name, "$") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]Property, 0, len(names))
	for _, name := range names {
		props = append(props, Property{Name: name, Value: raw[name], Version: version})
	}
	return props, nil
}

// TwinDocument is the body of a twin GET response.
type TwinDocument struct {
	Desired  json.RawMessage `json:"desired"`
	Reported json.RawMessage `json:"reported"`
}

// ParseTwin returns the desired properties of a full twin document.
func ParseTwin(data []byte) ([]Property, error) {
	var doc TwinDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse twin document: %w", err)
	}
	if len(doc.Desired) == 0 {
		return nil, nil
	}
	return ParseDesired(doc.Desired, 0)
}
