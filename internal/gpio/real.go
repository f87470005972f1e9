//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "dreadpi"

// RealPins drives actual hardware using the Linux GPIO character device.
type RealPins struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	order [2]int
}

// NewRealPins requests the two lines on chip. Lines are requested as-is so
// the level latched by the previous run can be read back before anything is
// written.
func NewRealPins(chip string, order [2]int) (*RealPins, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	lines, err := c.RequestLines(order[:], gpiocdev.AsIs, gpiocdev.WithConsumer(consumer))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request pins %v: %w", order, err)
	}

	return &RealPins{
		chip:  c,
		lines: lines,
		order: order,
	}, nil
}

// Read returns the level of each line in pin order.
func (p *RealPins) Read() ([2]int, error) {
	values := make([]int, 2)
	if err := p.lines.Values(values); err != nil {
		return [2]int{}, fmt.Errorf("read pins %v: %w", p.order, err)
	}
	return [2]int{values[0], values[1]}, nil
}

// Write switches both lines to output and drives them in one request, so the
// controller never observes a half-applied pattern from this process.
func (p *RealPins) Write(values [2]int) error {
	if err := p.lines.Reconfigure(gpiocdev.AsOutput(values[0], values[1])); err != nil {
		return fmt.Errorf("write pins %v=%v: %w", p.order, values, err)
	}
	return nil
}

// Close releases GPIO resources without reconfiguring the lines.
// The character device ABI leaves the state of a released line to the
// driver. The Raspberry Pi pinctrl driver (pinctrl-bcm2835) keeps a released
// output driven at its last level, and the load controller relies on that to
// hold the signalled mode until the next run. Other boards may float or reset
// released lines.
func (p *RealPins) Close() error {
	var errs []error

	if p.lines != nil {
		if err := p.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pins: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
