// Package iothub is the device side of an Azure IoT Hub style MQTT session:
// telemetry, direct methods and the device twin, with an abstraction for
// testing.
package iothub

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// APIVersion is the IoT Hub MQTT API version advertised in the username.
const APIVersion = "2021-04-12"

// Status codes used in method responses and writable property acks.
const (
	StatusOK             = 200
	StatusBadRequest     = 400
	StatusNotImplemented = 501
)

// EmptyBody is the method response body when there is nothing to return.
var EmptyBody = []byte("{}")

var (
	// ErrNotConnected is returned when a message cannot be sent or buffered
	// because the session is down.
	ErrNotConnected = errors.New("iothub: not connected")

	// ErrTimeout is returned when the broker does not confirm an operation in time.
	ErrTimeout = errors.New("iothub: timeout")
)

// Command is an inbound direct method invocation.
type Command struct {
	Name      string
	Payload   []byte
	RequestID string
}

// Property is one desired property value delivered by the hub. Version is
// the desired section's $version, echoed back in acknowledgments.
type Property struct {
	Name    string
	Value   json.RawMessage
	Version int64
}

// CommandHandler handles a direct method and returns the response status and body.
type CommandHandler func(cmd Command) (status int, body []byte)

// PropertyHandler handles one desired property.
type PropertyHandler func(p Property)

// Handlers are the inbound callbacks. Invocations are serialized: no two
// handlers ever run at the same time.
type Handlers struct {
	// Command is invoked for every direct method request. If nil, methods
	// are answered with 501.
	Command CommandHandler

	// DesiredProperty is invoked for each property of a desired-properties
	// patch pushed by the hub.
	DesiredProperty PropertyHandler

	// TwinProperty is invoked for each desired property in the full twin
	// document returned by RequestTwin.
	TwinProperty PropertyHandler
}

// Session is a connection to the hub.
type Session interface {
	// Register installs the inbound handlers. Call before Connect.
	Register(h Handlers)

	// Connect blocks until the session is established and subscribed.
	Connect(ctx context.Context) error

	// RequestTwin fetches the twin document and dispatches its desired
	// properties to the TwinProperty handler.
	RequestTwin(ctx context.Context) error

	// PublishTelemetry sends one named reading.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(name string, value float64) error

	// PublishReported sends a reported property patch with a single value.
	PublishReported(name string, value any) error

	// AckWritable acknowledges a writable property with the given status and version.
	AckWritable(name string, value any, status int, version int64) error

	// Close disconnects from the hub.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}
