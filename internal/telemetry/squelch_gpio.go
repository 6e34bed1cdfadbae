package telemetry

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// SquelchLine drives an optional GPIO line (e.g. an LED or relay) to
// reflect the demodulator's burst-detected state, mirroring the
// hardware-status-line role samoyed's GPIO paths play for PTT/DCD.
type SquelchLine struct {
	line *gpiocdev.Line
}

// OpenSquelchLine requests offset on chip as an output line, initially
// low.
func OpenSquelchLine(chip string, offset int) (*SquelchLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("telemetry: request gpio line %s:%d: %w", chip, offset, err)
	}
	return &SquelchLine{line: line}, nil
}

// SetDetected drives the line high when a burst is currently detected,
// low otherwise.
func (s *SquelchLine) SetDetected(detected bool) error {
	v := 0
	if detected {
		v = 1
	}
	return s.line.SetValue(v)
}

// Close releases the GPIO line.
func (s *SquelchLine) Close() error {
	return s.line.Close()
}
