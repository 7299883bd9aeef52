// Package config loads the daemon configuration from YAML, with a .env
// overlay for per-device values.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/fruit-grader/internal/gpio"
	"github.com/sweeney/fruit-grader/internal/loadcell"
	"github.com/sweeney/fruit-grader/internal/logic"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/fruit-grader.yaml"

// Report modes.
const (
	ReportHTTP = "http"
	ReportMQTT = "mqtt"
	ReportOff  = "off"
)

// Environment overrides, read from the process environment and from a
// .env file next to the config file.
const (
	EnvDeviceID   = "FRUIT_GRADER_DEVICE_ID"
	EnvReportURL  = "FRUIT_GRADER_REPORT_URL"
	EnvMQTTBroker = "FRUIT_GRADER_MQTT_BROKER"
	EnvReportMode = "FRUIT_GRADER_REPORT_MODE"
)

type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Loop        LoopConfig        `yaml:"loop"`
	AutoZero    AutoZeroConfig    `yaml:"auto_zero"`
	Product     ProductConfig     `yaml:"product"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Buttons     ButtonsConfig     `yaml:"buttons"`
	Audio       AudioConfig       `yaml:"audio"`
	Report      ReportConfig      `yaml:"report"`
	HTTP        HTTPConfig        `yaml:"http"`
}

type DeviceConfig struct {
	ID int `yaml:"id"`
}

type LoopConfig struct {
	Tick               time.Duration `yaml:"tick"`
	WindowSize         int           `yaml:"window_size"`
	StabilityThreshold float64       `yaml:"stability_threshold"`
	ZeroThreshold      float64       `yaml:"zero_threshold"`
	// AllowDirectStable lets READY/ZERO promote straight to STABLE.
	AllowDirectStable bool `yaml:"allow_direct_stable"`
}

type AutoZeroConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Threshold   float64       `yaml:"threshold"`
	Hold        time.Duration `yaml:"hold"`
	MinInterval time.Duration `yaml:"min_interval"`
}

type ProductConfig struct {
	Name      string        `yaml:"name"`
	MinWeight float64       `yaml:"min_weight"`
	MaxWeight float64       `yaml:"max_weight"`
	Grades    []GradeConfig `yaml:"grades"`
}

// GradeConfig is one band. Max may be omitted (or .inf) on the last band.
type GradeConfig struct {
	Name  string   `yaml:"name"`
	Min   float64  `yaml:"min"`
	Max   *float64 `yaml:"max"`
	Sound string   `yaml:"sound"`
	Color string   `yaml:"color"`
}

type CalibrationConfig struct {
	File            string        `yaml:"file"`
	ReferenceWeight float64       `yaml:"reference_weight"`
	Samples         int           `yaml:"samples"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
	MaxFactor       float64       `yaml:"max_factor"`
}

// SensorConfig describes the HX711. Every tick's read blocks for Average
// conversions, so the effective sampling period is the larger of the loop
// tick and Average times the converter's conversion time.
type SensorConfig struct {
	Chip          string        `yaml:"chip"`
	DoutPin       int           `yaml:"dout_pin"`
	SckPin        int           `yaml:"sck_pin"`
	CountsPerUnit float64       `yaml:"counts_per_unit"`
	Average       int           `yaml:"average"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type ButtonsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Chip         string        `yaml:"chip"`
	TarePin      int           `yaml:"tare_pin"`
	CalibratePin int           `yaml:"calibrate_pin"`
	Debounce     time.Duration `yaml:"debounce"`
}

type AudioConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Dir         string        `yaml:"dir"`
	Player      string        `yaml:"player"`
	ReinitDelay time.Duration `yaml:"reinit_delay"`
	Sounds      SoundsConfig  `yaml:"sounds"`
}

// SoundsConfig names the cue files (without .wav) for non-grade events.
type SoundsConfig struct {
	Zero        string `yaml:"zero"`
	Error       string `yaml:"error"`
	Overload    string `yaml:"overload"`
	Calibrated  string `yaml:"calibrated"`
	SensorRetry string `yaml:"sensor_retry"`
	Tare        string `yaml:"tare"`
}

type ReportConfig struct {
	Mode       string        `yaml:"mode"`
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	Broker     string        `yaml:"broker"`
	Topic      string        `yaml:"topic"`
	QueueSize  int           `yaml:"queue_size"`
	BufferSize int           `yaml:"buffer_size"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used for every field the file omits.
// It has no grade bands; those must come from the file.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{ID: 1},
		Loop: LoopConfig{
			Tick:               50 * time.Millisecond,
			WindowSize:         5,
			StabilityThreshold: 1.0,
			ZeroThreshold:      logic.SnapToZero,
		},
		AutoZero: AutoZeroConfig{
			Enabled:     true,
			Threshold:   1.2,
			Hold:        3 * time.Second,
			MinInterval: 5 * time.Minute,
		},
		Product: ProductConfig{
			Name:      "fruit",
			MinWeight: 50,
			MaxWeight: 1000,
		},
		Calibration: CalibrationConfig{
			File:            "/var/lib/fruit-grader/calibration.yaml",
			ReferenceWeight: 100,
			Samples:         20,
			SampleInterval:  50 * time.Millisecond,
			MaxFactor:       10,
		},
		Sensor: SensorConfig{
			Chip:          "gpiochip0",
			DoutPin:       loadcell.DefaultDoutPin,
			SckPin:        loadcell.DefaultSckPin,
			CountsPerUnit: 420,
			Average:       1,
			ReadyTimeout:  time.Second,
			RetryInterval: 5 * time.Second,
		},
		Buttons: ButtonsConfig{
			Enabled:      true,
			Chip:         "gpiochip0",
			TarePin:      gpio.DefaultPinTare,
			CalibratePin: gpio.DefaultPinCalibrate,
			Debounce:     50 * time.Millisecond,
		},
		Audio: AudioConfig{
			Enabled:     true,
			Dir:         "/usr/share/fruit-grader/sounds",
			Player:      "aplay",
			ReinitDelay: 100 * time.Millisecond,
			Sounds: SoundsConfig{
				Zero:        "zero",
				Error:       "error",
				Overload:    "overload",
				Calibrated:  "calibrated",
				SensorRetry: "sensor_retry",
				Tare:        "tare",
			},
		},
		Report: ReportConfig{
			Mode:       ReportHTTP,
			Timeout:    10 * time.Second,
			Topic:      "grader/readings",
			QueueSize:  16,
			BufferSize: 256,
		},
		HTTP: HTTPConfig{Addr: ":80"},
	}
}

// Load reads path over the defaults, applies the environment overlay and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read config %s", path)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse config %s", path)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := c.applyEnv(envFile); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid config %s", path)
	}
	return c, nil
}

// applyEnv overlays the FRUIT_GRADER_* variables. Process environment wins
// over the .env file.
func (c *Config) applyEnv(envFile string) error {
	vars, err := godotenv.Read(envFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return pkgerrors.Wrapf(err, "failed to read %s", envFile)
		}
		vars = map[string]string{}
	}
	get := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}

	if v, ok := get(EnvDeviceID); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return pkgerrors.Wrapf(err, "%s", EnvDeviceID)
		}
		c.Device.ID = id
	}
	if v, ok := get(EnvReportURL); ok {
		c.Report.URL = v
	}
	if v, ok := get(EnvMQTTBroker); ok {
		c.Report.Broker = v
	}
	if v, ok := get(EnvReportMode); ok {
		c.Report.Mode = v
	}
	return nil
}

// Bands converts the configured grades into classifier bands.
func (c *Config) Bands() []logic.GradeBand {
	bands := make([]logic.GradeBand, len(c.Product.Grades))
	for i, g := range c.Product.Grades {
		upper := logic.Unbounded
		if g.Max != nil {
			upper = *g.Max
		}
		sound := g.Sound
		if sound == "" {
			sound = g.Name
		}
		bands[i] = logic.GradeBand{Name: g.Name, Min: g.Min, Max: upper, Sound: sound, Color: g.Color}
	}
	return bands
}

// Validate checks the configuration for defects that would make grading
// ambiguous or the loop misbehave.
func (c *Config) Validate() error {
	if c.Loop.Tick <= 0 {
		return pkgerrors.New("loop.tick must be positive")
	}
	if c.Loop.WindowSize < 2 {
		return pkgerrors.Errorf("loop.window_size must be at least 2, got %d", c.Loop.WindowSize)
	}
	if c.Loop.StabilityThreshold <= 0 {
		return pkgerrors.New("loop.stability_threshold must be positive")
	}
	if c.Loop.ZeroThreshold <= 0 {
		return pkgerrors.New("loop.zero_threshold must be positive")
	}
	if c.AutoZero.Enabled {
		if c.AutoZero.Threshold <= 0 {
			return pkgerrors.New("auto_zero.threshold must be positive")
		}
		if c.AutoZero.Hold <= 0 || c.AutoZero.MinInterval < 0 {
			return pkgerrors.New("auto_zero.hold must be positive and auto_zero.min_interval non-negative")
		}
	}

	p := c.Product
	if p.MinWeight <= 0 {
		return pkgerrors.New("product.min_weight must be positive")
	}
	if p.MaxWeight <= p.MinWeight {
		return pkgerrors.Errorf("product.max_weight %g must exceed min_weight %g", p.MaxWeight, p.MinWeight)
	}
	for i, g := range p.Grades {
		if g.Max == nil && i != len(p.Grades)-1 {
			return pkgerrors.Errorf("grade %q: only the last grade may omit max", g.Name)
		}
		if g.Max != nil && math.IsNaN(*g.Max) {
			return pkgerrors.Errorf("grade %q: max is NaN", g.Name)
		}
	}
	if err := logic.ValidateBands(p.MinWeight, c.Bands()); err != nil {
		return pkgerrors.Wrap(err, "product.grades")
	}

	cal := c.Calibration
	if cal.File == "" {
		return pkgerrors.New("calibration.file is required")
	}
	if cal.ReferenceWeight <= 0 {
		return pkgerrors.New("calibration.reference_weight must be positive")
	}
	if cal.Samples < 1 {
		return pkgerrors.New("calibration.samples must be at least 1")
	}
	if cal.MaxFactor <= 0 {
		return pkgerrors.New("calibration.max_factor must be positive")
	}

	if c.Sensor.CountsPerUnit == 0 {
		return pkgerrors.New("sensor.counts_per_unit must be non-zero")
	}
	if c.Sensor.RetryInterval <= 0 {
		return pkgerrors.New("sensor.retry_interval must be positive")
	}
	if c.Buttons.Enabled && c.Buttons.TarePin == c.Buttons.CalibratePin {
		return pkgerrors.New("buttons.tare_pin and buttons.calibrate_pin must differ")
	}

	switch c.Report.Mode {
	case ReportHTTP:
		if c.Report.URL == "" {
			return pkgerrors.New("report.url is required in http mode")
		}
	case ReportMQTT:
		if c.Report.Broker == "" {
			return pkgerrors.New("report.broker is required in mqtt mode")
		}
	case ReportOff:
	default:
		return pkgerrors.Errorf("report.mode must be %q, %q or %q, got %q", ReportHTTP, ReportMQTT, ReportOff, c.Report.Mode)
	}
	return nil
}

// LogrusFields summarises the configuration for the startup log line.
func (c *Config) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"device":     c.Device.ID,
		"product":    c.Product.Name,
		"grades":     len(c.Product.Grades),
		"tick":       c.Loop.Tick,
		"window":     c.Loop.WindowSize,
		"reportMode": c.Report.Mode,
		"http":       c.HTTP.Addr,
	}
}
