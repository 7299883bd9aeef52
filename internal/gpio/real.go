//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches buttons wired between a GPIO pin and ground.
type RealWatcher struct {
	chip    *gpiocdev.Chip
	lines   []*gpiocdev.Line
	presses chan Press
	mu      sync.Mutex
	closed  bool
}

// NewRealWatcher requests the button lines with pull-ups and falling-edge
// detection. debounce is applied by the kernel.
func NewRealWatcher(chipName string, pinTare, pinCalibrate int, debounce time.Duration) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWatcher{
		chip:    chip,
		presses: make(chan Press, 1),
	}

	for pin, button := range map[int]Button{pinTare: ButtonTare, pinCalibrate: ButtonCalibrate} {
		button := button
		line, err := chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				w.deliver(Press{Button: button, Time: time.Now()})
			}),
		)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", button, pin, err)
		}
		w.lines = append(w.lines, line)
	}

	return w, nil
}

func (w *RealWatcher) deliver(p Press) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.presses <- p:
	default:
		logrus.WithField("button", p.Button).Debug("button press dropped, previous still pending")
	}
}

// Presses returns the press channel.
func (w *RealWatcher) Presses() <-chan Press {
	return w.presses
}

// Close releases GPIO resources.
// Lines are reconfigured as plain inputs with pull-down before closing to
// match Raspberry Pi boot defaults.
func (w *RealWatcher) Close() error {
	var errs []error

	for _, line := range w.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.presses)
	}
	w.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
