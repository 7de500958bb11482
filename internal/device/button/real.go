//go:build linux

package button

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads button states from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealReader requests the given BCM pins as pulled-up inputs, one per
// button index.
func NewRealReader(pins []int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines := make([]*gpiocdev.Line, 0, len(pins))
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			for _, l := range lines {
				l.Close()
			}
			chip.Close()
			return nil, fmt.Errorf("request button pin %d: %w", pin, err)
		}
		lines = append(lines, line)
	}

	return &RealReader{chip: chip, lines: lines}, nil
}

// Read returns the logical pressed state per button.
// Inverts raw GPIO: buttons pull the line to ground, so raw 0 = pressed.
func (r *RealReader) Read() ([]bool, error) {
	states := make([]bool, len(r.lines))
	for i, line := range r.lines {
		raw, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read button %d: %w", i, err)
		}
		states[i] = raw == 0
	}
	return states, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	for i, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button %d: %w", i, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
