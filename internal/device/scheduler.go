package device

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/devkit-client/internal/sensor"
)

var log = logrus.WithField("component", "device")

// TelemetryPublisher sends one named reading to the cloud.
type TelemetryPublisher interface {
	PublishTelemetry(name string, value float64) error
}

// Scheduler publishes one sensor reading per wake, rotating through the
// sensors in order.
type Scheduler struct {
	state     *State
	sensors   []sensor.Sensor
	publisher TelemetryPublisher
	observer  Observer

	// After returns a channel that fires after d. Defaults to a time.Timer.
	After func(d time.Duration) <-chan time.Time

	// Now is the clock used for observer timestamps. Defaults to time.Now.
	Now func() time.Time
}

// NewScheduler creates a scheduler over the given sensors. sensors must not be empty.
func NewScheduler(state *State, sensors []sensor.Sensor, publisher TelemetryPublisher, observer Observer) *Scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scheduler{
		state:     state,
		sensors:   sensors,
		publisher: publisher,
		observer:  observer,
		Now:       time.Now,
	}
}

// Run waits up to the current interval, or until the interval changes, then
// publishes the next reading. It only returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithField("interval", s.state.Interval()).Info("starting telemetry loop")
	for {
		if err := s.wait(ctx, s.state.Interval()); err != nil {
			return err
		}
		s.Step()
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	var fire <-chan time.Time
	if s.After != nil {
		fire = s.After(d)
	} else {
		t := time.NewTimer(d)
		defer t.Stop()
		fire = t.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fire:
	case <-s.state.Wake():
		log.WithField("interval", s.state.Interval()).Debug("woken by interval change")
	}
	return nil
}

// Step reads the current sensor, publishes it and advances the rotation.
// Failures are logged; the rotation advances regardless.
func (s *Scheduler) Step() {
	sn := s.sensors[s.state.advance(len(s.sensors))]
	entry := log.WithField("sensor", sn.Name)

	value, err := sn.Read()
	if err != nil {
		entry.WithError(err).Warn("sensor read failed")
		s.observer.TelemetryFailed(sn.Name, err)
		return
	}

	if err := s.publisher.PublishTelemetry(sn.Name, value); err != nil {
		// Telemetry is best effort
		entry.WithError(err).Warn("publish telemetry failed")
		s.observer.TelemetryFailed(sn.Name, err)
		return
	}

	entry.WithField("value", value).Debug("telemetry published")
	s.observer.TelemetryPublished(sn.Name, value, s.Now())
}
