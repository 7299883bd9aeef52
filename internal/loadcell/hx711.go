//go:build linux

package loadcell

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// Extra clock pulses after the 24 data bits select the next conversion's
// channel and gain. One pulse = channel A, gain 128.
const gainPulses = 1

// HX711 reads an HX711 load cell amplifier using the Linux GPIO character device.
type HX711 struct {
	chip *gpiocdev.Chip
	dout *gpiocdev.Line
	sck  *gpiocdev.Line

	countsPerUnit float64
	average       int
	readyTimeout  time.Duration
	offset        float64 // tare offset in counts
}

// NewHX711 opens the DOUT and SCK lines.
func NewHX711(cfg Config) (*HX711, error) {
	if cfg.CountsPerUnit == 0 {
		return nil, fmt.Errorf("counts per unit must be non-zero")
	}
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	dout, err := chip.RequestLine(cfg.DoutPin, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request DOUT pin %d: %w", cfg.DoutPin, err)
	}

	// SCK held low keeps the converter powered.
	sck, err := chip.RequestLine(cfg.SckPin, gpiocdev.AsOutput(0))
	if err != nil {
		dout.Close()
		chip.Close()
		return nil, fmt.Errorf("request SCK pin %d: %w", cfg.SckPin, err)
	}

	h := &HX711{
		chip:          chip,
		dout:          dout,
		sck:           sck,
		countsPerUnit: cfg.CountsPerUnit,
		average:       cfg.Average,
		readyTimeout:  cfg.ReadyTimeout,
	}
	if h.average < 1 {
		h.average = 1
	}
	if h.readyTimeout <= 0 {
		h.readyTimeout = 500 * time.Millisecond
	}

	// A first conversion proves the converter is wired and powered.
	if _, err := h.readCounts(); err != nil {
		h.Close()
		return nil, fmt.Errorf("probe hx711: %w", err)
	}
	logrus.WithFields(logrus.Fields{"dout": cfg.DoutPin, "sck": cfg.SckPin}).Info("hx711 ready")
	return h, nil
}

// ReadRaw returns the averaged tared reading in sensor units.
func (h *HX711) ReadRaw() (float64, error) {
	counts, err := h.averageCounts()
	if err != nil {
		return 0, err
	}
	return (counts - h.offset) / h.countsPerUnit, nil
}

// Tare stores the current averaged reading as the zero offset.
func (h *HX711) Tare() error {
	counts, err := h.averageCounts()
	if err != nil {
		return fmt.Errorf("tare: %w", err)
	}
	h.offset = counts
	return nil
}

func (h *HX711) averageCounts() (float64, error) {
	sum := 0.0
	for i := 0; i < h.average; i++ {
		c, err := h.readCounts()
		if err != nil {
			return 0, err
		}
		sum += float64(c)
	}
	return sum / float64(h.average), nil
}

// readCounts clocks out one 24-bit two's complement conversion.
func (h *HX711) readCounts() (int32, error) {
	deadline := time.Now().Add(h.readyTimeout)
	for {
		v, err := h.dout.Value()
		if err != nil {
			return 0, fmt.Errorf("read DOUT: %w", err)
		}
		if v == 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrNotReady
		}
		time.Sleep(time.Millisecond)
	}

	var raw uint32
	for i := 0; i < 24; i++ {
		bit, err := h.pulse()
		if err != nil {
			return 0, err
		}
		raw = raw<<1 | uint32(bit&1)
	}
	for i := 0; i < gainPulses; i++ {
		if _, err := h.pulse(); err != nil {
			return 0, err
		}
	}

	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw), nil
}

// pulse raises SCK, samples DOUT and lowers SCK again. SCK must not stay
// high for more than 60us or the converter powers down.
func (h *HX711) pulse() (int, error) {
	if err := h.sck.SetValue(1); err != nil {
		return 0, fmt.Errorf("set SCK: %w", err)
	}
	bit, err := h.dout.Value()
	if serr := h.sck.SetValue(0); serr != nil && err == nil {
		err = fmt.Errorf("clear SCK: %w", serr)
	}
	if err != nil {
		return 0, fmt.Errorf("read DOUT: %w", err)
	}
	return bit, nil
}

// Close releases GPIO resources.
// SCK is returned to an input so the converter is left powered down and the
// pin matches Pi boot defaults.
func (h *HX711) Close() error {
	var errs []error

	if h.sck != nil {
		if err := h.sck.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure SCK pin: %w", err))
		}
		if err := h.sck.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close SCK pin: %w", err))
		}
	}
	if h.dout != nil {
		if err := h.dout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close DOUT pin: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
