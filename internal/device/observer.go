package device

import "time"

// Observer is notified of state changes, e.g. to feed a status page.
// Calls come from the scheduler and dispatcher goroutines.
type Observer interface {
	TelemetryPublished(name string, value float64, at time.Time)
	TelemetryFailed(name string, err error)
	IntervalChanged(seconds int32)
	LEDChanged(on bool)
}

type nopObserver struct{}

func (nopObserver) TelemetryPublished(string, float64, time.Time) {}
func (nopObserver) TelemetryFailed(string, error)                 {}
func (nopObserver) IntervalChanged(int32)                         {}
func (nopObserver) LEDChanged(bool)                               {}
