package iothub

import (
	"context"
	"sync"
)

// Telemetry is one recorded reading.
type Telemetry struct {
	Name  string
	Value float64
}

// Reported is one recorded reported-property patch.
type Reported struct {
	Name  string
	Value any
}

// Ack is one recorded writable-property acknowledgment.
type Ack struct {
	Name    string
	Value   any
	Status  int
	Version int64
}

// MethodResponse is one recorded direct method response.
type MethodResponse struct {
	RequestID string
	Status    int
	Body      []byte
}

// FakeSession records outbound traffic and lets tests inject inbound
// messages. Inbound delivery is synchronous and serialized, like the real
// session's dispatch goroutine.
type FakeSession struct {
	mu       sync.Mutex
	dispatch sync.Mutex
	handlers Handlers

	// Twin is the desired section returned by RequestTwin.
	Twin []Property

	Telemetry       []Telemetry
	Reported        []Reported
	Acks            []Ack
	MethodResponses []MethodResponse

	// Errors returned by the corresponding operation, if set.
	ConnectError error
	TwinError    error
	PublishError error
	ReportError  error
	AckError     error

	Connected     bool
	TwinRequested bool
	Closed        bool

	// OnTelemetry, if set, is called after each recorded reading.
	OnTelemetry func(Telemetry)
}

// NewFakeSession creates a FakeSession for testing.
func NewFakeSession() *FakeSession {
	return &FakeSession{}
}

// Register installs the inbound handlers.
func (f *FakeSession) Register(h Handlers) {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
}

// Connect marks the session connected unless ConnectError is set.
func (f *FakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.Connected = true
	return nil
}

// RequestTwin delivers every property in Twin to the TwinProperty handler.
func (f *FakeSession) RequestTwin(ctx context.Context) error {
	f.mu.Lock()
	if f.TwinError != nil {
		err := f.TwinError
		f.mu.Unlock()
		return err
	}
	f.TwinRequested = true
	props := append([]Property(nil), f.Twin...)
	f.mu.Unlock()

	for _, p := range props {
		f.InjectTwinProperty(p)
	}
	return nil
}

// PublishTelemetry records the reading.
func (f *FakeSession) PublishTelemetry(name string, value float64) error {
	f.mu.Lock()
	if f.PublishError != nil {
		err := f.PublishError
		f.mu.Unlock()
		return err
	}
	tm := Telemetry{Name: name, Value: value}
	f.Telemetry = append(f.Telemetry, tm)
	hook := f.OnTelemetry
	f.mu.Unlock()

	if hook != nil {
		hook(tm)
	}
	return nil
}

// PublishReported records the reported property.
func (f *FakeSession) PublishReported(name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReportError != nil {
		return f.ReportError
	}
	f.Reported = append(f.Reported, Reported{Name: name, Value: value})
	return nil
}

// AckWritable records the acknowledgment.
func (f *FakeSession) AckWritable(name string, value any, status int, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AckError != nil {
		return f.AckError
	}
	f.Acks = append(f.Acks, Ack{Name: name, Value: value, Status: status, Version: version})
	return nil
}

// InjectCommand runs the command handler and records its response.
func (f *FakeSession) InjectCommand(cmd Command) MethodResponse {
	f.dispatch.Lock()
	defer f.dispatch.Unlock()

	h := f.currentHandlers()
	status, body := StatusNotImplemented, EmptyBody
	if h.Command != nil {
		status, body = h.Command(cmd)
	}
	resp := MethodResponse{RequestID: cmd.RequestID, Status: status, Body: body}

	f.mu.Lock()
	f.MethodResponses = append(f.MethodResponses, resp)
	f.mu.Unlock()
	return resp
}

// InjectDesiredProperty runs the desired-property handler.
func (f *FakeSession) InjectDesiredProperty(p Property) {
	f.dispatch.Lock()
	defer f.dispatch.Unlock()
	if h := f.currentHandlers(); h.DesiredProperty != nil {
		h.DesiredProperty(p)
	}
}

// InjectTwinProperty runs the twin-property handler.
func (f *FakeSession) InjectTwinProperty(p Property) {
	f.dispatch.Lock()
	defer f.dispatch.Unlock()
	if h := f.currentHandlers(); h.TwinProperty != nil {
		h.TwinProperty(p)
	}
}

func (f *FakeSession) currentHandlers() Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers
}

// TelemetryNames returns the names of recorded readings in publish order.
func (f *FakeSession) TelemetryNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.Telemetry))
	for i, tm := range f.Telemetry {
		names[i] = tm.Name
	}
	return names
}

// TelemetryCount returns the number of recorded readings.
func (f *FakeSession) TelemetryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Telemetry)
}

// AckSnapshot returns a copy of the recorded acknowledgments.
func (f *FakeSession) AckSnapshot() []Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Ack(nil), f.Acks...)
}

// ReportedSnapshot returns a copy of the recorded reported properties.
func (f *FakeSession) ReportedSnapshot() []Reported {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reported(nil), f.Reported...)
}

// IsConnected reports whether the fake session is "connected".
func (f *FakeSession) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the session as closed.
func (f *FakeSession) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.Connected = false
	f.mu.Unlock()
	return nil
}

// Reset clears recorded traffic and injected errors.
func (f *FakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Telemetry = nil
	f.Reported = nil
	f.Acks = nil
	f.MethodResponses = nil
	f.ConnectError = nil
	f.TwinError = nil
	f.PublishError = nil
	f.ReportError = nil
	f.AckError = nil
	f.TwinRequested = false
	f.Closed = false
}
