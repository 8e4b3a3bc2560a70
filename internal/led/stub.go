//go:build !linux

package led

import "errors"

// GPIOLED is not available on non-Linux platforms.
type GPIOLED struct{}

// NewGPIOLED returns an error on non-Linux platforms.
func NewGPIOLED(chipName string, offset int) (*GPIOLED, error) {
	return nil, errors.New("led: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (l *GPIOLED) Set(on bool) error {
	return errors.New("led: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *GPIOLED) Close() error {
	return nil
}
