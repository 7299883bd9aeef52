//go:build !linux

package loadcell

import "errors"

// HX711 is not available on non-Linux platforms.
type HX711 struct{}

// NewHX711 returns an error on non-Linux platforms.
func NewHX711(cfg Config) (*HX711, error) {
	return nil, errors.New("loadcell: not supported on this platform (requires Linux)")
}

// ReadRaw is not implemented on non-Linux platforms.
func (h *HX711) ReadRaw() (float64, error) {
	return 0, errors.New("loadcell: not supported")
}

// Tare is not implemented on non-Linux platforms.
func (h *HX711) Tare() error {
	return errors.New("loadcell: not supported")
}

// Close is not implemented on non-Linux platforms.
func (h *HX711) Close() error {
	return nil
}
