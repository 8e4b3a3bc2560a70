package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/devkit-client/internal/iothub"
	"github.com/sweeney/devkit-client/internal/led"
	"github.com/sweeney/devkit-client/internal/sensor"
)

// Config wires a Device to its collaborators.
type Config struct {
	Session         iothub.Session
	LED             led.LED
	Sensors         []sensor.Sensor
	IntervalSeconds int32    // initial telemetry period; < 1 uses the default
	Observer        Observer // optional
}

// Device owns the shared state, the scheduler and the dispatcher.
type Device struct {
	session    iothub.Session
	state      *State
	scheduler  *Scheduler
	dispatcher *Dispatcher
}

// New creates a device. It does not touch the network.
func New(cfg Config) (*Device, error) {
	if cfg.Session == nil {
		return nil, errors.New("device: session is required")
	}
	if cfg.LED == nil {
		return nil, errors.New("device: LED is required")
	}
	if len(cfg.Sensors) == 0 {
		return nil, errors.New("device: at least one sensor is required")
	}

	state := NewState(cfg.IntervalSeconds)
	return &Device{
		session:    cfg.Session,
		state:      state,
		scheduler:  NewScheduler(state, cfg.Sensors, cfg.Session, cfg.Observer),
		dispatcher: NewDispatcher(state, cfg.LED, cfg.Session, cfg.Observer),
	}, nil
}

// State returns the shared state.
func (d *Device) State() *State {
	return d.state
}

// Scheduler returns the telemetry scheduler.
func (d *Device) Scheduler() *Scheduler {
	return d.scheduler
}

// Dispatcher returns the command/property dispatcher.
func (d *Device) Dispatcher() *Dispatcher {
	return d.dispatcher
}

// Start registers the handlers, connects, syncs the twin and reports the
// initial LED state. Any error here is fatal for the device.
func (d *Device) Start(ctx context.Context) error {
	d.session.Register(d.dispatcher.Handlers())

	if err := d.session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := d.session.RequestTwin(ctx); err != nil {
		return fmt.Errorf("request twin: %w", err)
	}

	d.dispatcher.SetLED(false)
	return nil
}

// Run starts the device and then runs the telemetry loop until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	return d.scheduler.Run(ctx)
}
