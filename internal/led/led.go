// Package led drives the board's status LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package led

// LED is a single on/off output.
type LED interface {
	// Set drives the LED on (true) or off (false).
	Set(on bool) error

	// Close turns the LED off and releases the GPIO line.
	Close() error
}

// Line defaults for the devkit user LED.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 13
)
