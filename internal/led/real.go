//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOLED drives an LED wired to a GPIO output line (active high).
type GPIOLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIOLED requests the given line as an output, initially off.
func NewGPIOLED(chipName string, offset int) (*GPIOLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED line %d: %w", offset, err)
	}

	return &GPIOLED{chip: chip, line: line}, nil
}

// Set drives the line high for on, low for off.
func (l *GPIOLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set LED line: %w", err)
	}
	return nil
}

// Close drives the LED off, then returns the line to an input with pull-down
// so the pin is left in its boot default state.
func (l *GPIOLED) Close() error {
	var errs []error

	if l.line != nil {
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("turn LED off: %w", err))
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure LED line: %w", err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED line: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
