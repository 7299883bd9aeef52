// Package gpio provides the operator push buttons with hardware abstraction.
// The real implementation uses Linux GPIO character device edge events.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Button identifies an operator button.
type Button string

const (
	ButtonTare      Button = "TARE"
	ButtonCalibrate Button = "CALIBRATE"
)

// Press is a single debounced button press.
type Press struct {
	Button Button
	Time   time.Time
}

// Watcher delivers button presses.
type Watcher interface {
	// Presses returns the channel presses are delivered on. Presses that
	// arrive while the previous one is still unread are dropped.
	Presses() <-chan Press

	// Close releases GPIO resources and closes the Presses channel.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinTare      = 17
	DefaultPinCalibrate = 27
)
