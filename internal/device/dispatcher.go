package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/devkit-client/internal/iothub"
	"github.com/sweeney/devkit-client/internal/led"
)

// Names on the wire.
const (
	CommandSetLEDState        = "setLedState"
	PropertyTelemetryInterval = "telemetryInterval"
	PropertyLEDState          = "ledState"
)

// ErrInvalidInterval is returned for a telemetryInterval value that is not a
// positive 32-bit integer.
var ErrInvalidInterval = errors.New("invalid telemetry interval")

// PropertyReporter sends reported properties and writable-property acks.
type PropertyReporter interface {
	PublishReported(name string, value any) error
	AckWritable(name string, value any, status int, version int64) error
}

// Dispatcher maps inbound commands and properties to actions.
type Dispatcher struct {
	state    *State
	led      led.LED
	reporter PropertyReporter
	observer Observer
}

// NewDispatcher creates a dispatcher acting on state and the LED.
func NewDispatcher(state *State, l led.LED, reporter PropertyReporter, observer Observer) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{state: state, led: l, reporter: reporter, observer: observer}
}

// Handlers returns the session callbacks backed by this dispatcher.
func (d *Dispatcher) Handlers() iothub.Handlers {
	return iothub.Handlers{
		Command:         d.HandleCommand,
		DesiredProperty: d.HandleDesiredProperty,
		TwinProperty:    d.HandleTwinProperty,
	}
}

// HandleCommand executes a direct method. setLedState turns the LED on for a
// payload that decodes to JSON true (or the string "true") and off for anything
// else, then reports ledState.
// Unknown methods get 501.
func (d *Dispatcher) HandleCommand(cmd iothub.Command) (int, []byte) {
	entry := log.WithField("method", cmd.Name)
	if cmd.Name != CommandSetLEDState {
		entry.Warn("unknown method")
		return iothub.StatusNotImplemented, iothub.EmptyBody
	}

	on := parseLEDPayload(cmd.Payload)
	d.SetLED(on)
	entry.WithField("on", on).Info("LED state set")
	return iothub.StatusOK, iothub.EmptyBody
}

// SetLED applies and reports the LED state. A hardware failure is logged;
// the reported value is the requested state.
func (d *Dispatcher) SetLED(on bool) {
	if err := d.led.Set(on); err != nil {
		log.WithError(err).Error("set LED failed")
	}
	d.state.setLED(on)
	d.observer.LEDChanged(on)

	if err := d.reporter.PublishReported(PropertyLEDState, on); err != nil {
		log.WithError(err).Warn("report ledState failed")
	}
}

// HandleDesiredProperty applies a desired-property patch. A valid
// telemetryInterval is stored, wakes the scheduler and is acknowledged with
// 200. An invalid value changes nothing and is not acknowledged.
func (d *Dispatcher) HandleDesiredProperty(p iothub.Property) {
	entry := propertyLog(p)
	if p.Name != PropertyTelemetryInterval {
		entry.Debug("ignoring unknown property")
		return
	}

	seconds, err := ParseInterval(p.Value)
	if err != nil {
		entry.WithError(err).Warn("rejecting desired property")
		return
	}
	d.applyInterval(seconds)
	d.ack(seconds, p.Version)
}

// HandleTwinProperty applies a desired property from the full twin sync. A
// valid telemetryInterval is stored and wakes the scheduler. Every property
// in the twin, whatever its name or value, is answered with the current
// interval so the twin's reported section always mirrors the running value.
func (d *Dispatcher) HandleTwinProperty(p iothub.Property) {
	entry := propertyLog(p)
	if p.Name != PropertyTelemetryInterval {
		entry.Debug("unknown twin property, acknowledging current interval")
	} else if seconds, err := ParseInterval(p.Value); err != nil {
		entry.WithError(err).Warn("keeping current interval")
	} else {
		d.applyInterval(seconds)
	}
	d.ack(d.state.IntervalSeconds(), p.Version)
}

func (d *Dispatcher) applyInterval(seconds int32) {
	d.state.SetInterval(seconds)
	d.observer.IntervalChanged(seconds)
	log.WithField("interval", seconds).Info("telemetry interval updated")
}

func (d *Dispatcher) ack(seconds int32, version int64) {
	if err := d.reporter.AckWritable(PropertyTelemetryInterval, seconds, iothub.StatusOK, version); err != nil {
		log.WithError(err).Warn("acknowledge telemetryInterval failed")
	}
}

func propertyLog(p iothub.Property) *logrus.Entry {
	return log.WithFields(logrus.Fields{"property": p.Name, "version": p.Version})
}

// ParseInterval decodes a JSON integer in [1, MaxInt32].
func ParseInterval(raw []byte) (int32, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	if v < 1 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidInterval, v)
	}
	return int32(v), nil
}

// parseLEDPayload reports whether payload is JSON true, either the literal
// or the string "true". Anything else, including invalid JSON, is off.
func parseLEDPayload(payload []byte) bool {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return false
	}
	switch on := v.(type) {
	case bool:
		return on
	case string:
		return on == "true"
	}
	return false
}
