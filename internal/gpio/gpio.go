// Package gpio drives the two demand-response output lines with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pins reads and writes the two output lines, in configured pin order.
// Values are raw line levels: 1 = high, 0 = low.
type Pins interface {
	// Read returns the currently latched level of each line.
	Read() ([2]int, error)

	// Write drives each line to the given level.
	Write(values [2]int) error

	// Close releases the lines without changing their levels.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
