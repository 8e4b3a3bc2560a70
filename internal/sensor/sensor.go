// Package sensor provides sensor reading with hardware abstraction.
// The real implementation reads Linux IIO sysfs attributes.
// The fake implementation allows testing without hardware.
package sensor

// Sensor is one named reading source. The scheduler samples sensors in
// slice order.
type Sensor struct {
	Name string
	Read func() (float64, error)
}

// Board exposes the ordered set of sensors on a device.
type Board interface {
	// Sensors returns the sensors in round-robin order.
	Sensors() []Sensor

	// Close releases sensor resources.
	Close() error
}

// Telemetry names, in the order the scheduler publishes them.
const (
	Temperature  = "temperature"
	Pressure     = "pressure"
	Humidity     = "humidity"
	Acceleration = "acceleration"
	Magnetic     = "magnetic"
)

// DefaultNames is the publish rotation of the devkit board.
var DefaultNames = []string{Temperature, Pressure, Humidity, Acceleration, Magnetic}
