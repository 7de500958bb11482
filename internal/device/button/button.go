// Package button provides button input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device; the fake
// implementation allows testing without hardware.
package button

// Reader reads the pressed state of each wired button.
type Reader interface {
	// Read returns the logical pressed state per button index.
	// Buttons are wired active-low with pull-ups: raw 0 = pressed.
	Read() ([]bool, error)

	// Close releases input resources.
	Close() error
}
