package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/fruit-grader/internal/audio"
	"github.com/sweeney/fruit-grader/internal/calibration"
	"github.com/sweeney/fruit-grader/internal/config"
	"github.com/sweeney/fruit-grader/internal/gpio"
	"github.com/sweeney/fruit-grader/internal/grader"
	"github.com/sweeney/fruit-grader/internal/loadcell"
	"github.com/sweeney/fruit-grader/internal/logic"
	"github.com/sweeney/fruit-grader/internal/report"
	"github.com/sweeney/fruit-grader/internal/status"
	"github.com/sweeney/fruit-grader/internal/web"
)

const (
	shutdownTimeout = 5 * time.Second
	networkRefresh  = time.Minute
)

// NewRunCommand runs the daemon in the foreground.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Run the grading daemon in the foreground",
		GroupID: gDaemon,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	logrus.WithFields(cfg.LogrusFields()).Info("fruit-grader starting")

	bands := cfg.Bands()
	tracker := status.NewTracker(time.Now(), statusConfig(cfg), bands)
	if net := status.ReadNetworkInfo(status.DefaultNetworkEnvFile); net != nil {
		tracker.SetNetwork(net)
	}

	g, ctx := errgroup.WithContext(ctx)

	var cues *audio.Queue
	if cfg.Audio.Enabled {
		cues = audio.NewQueue()
		player := audio.NewPlayer(audio.NewWAVDevice(cfg.Audio.Dir, cfg.Audio.Player), cues, cfg.Audio.ReinitDelay)
		g.Go(func() error { return player.Run(ctx) })
	}

	sensor, err := loadcell.WaitForSensor(ctx, openSensor(cfg), cfg.Sensor.RetryInterval, func(int, error) {
		if cues != nil {
			cues.TryEnqueue(audio.Request{Sound: cfg.Audio.Sounds.SensorRetry, RequestedAt: time.Now()})
		}
	})
	if err != nil {
		logrus.WithError(err).Info("stopped while waiting for the load cell")
		return g.Wait()
	}
	defer sensor.Close()

	sink, conn, closeSink, err := newSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	dispatcher := report.NewDispatcher(sink, cfg.Report.QueueSize)
	reporter := &trackedReporter{dispatcher: dispatcher, tracker: tracker}
	dispatcher.OnResult(func(ev report.Event, res report.Result) {
		logrus.WithFields(logrus.Fields{
			"event":  ev.ID,
			"grade":  ev.Grade,
			"result": res,
		}).Debug("report delivered")
		reporter.sync()
	})
	g.Go(func() error { return dispatcher.Run(ctx) })

	deps := grader.Deps{
		Sensor:     sensor,
		Store:      calibration.NewFileStore(cfg.Calibration.File),
		Reporter:   reporter,
		Connection: conn,
		Tracker:    tracker,
	}
	if cues != nil {
		deps.Audio = cues
	}
	ctrl, err := grader.New(graderConfig(cfg), deps)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Loop.Tick)
	g.Go(func() error {
		defer ticker.Stop()
		return ctrl.Run(ctx, ticker.C)
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ctrl, cfg.Calibration.ReferenceWeight)
		g.Go(func() error {
			logrus.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if cfg.Buttons.Enabled {
		w, err := gpio.NewRealWatcher(cfg.Buttons.Chip, cfg.Buttons.TarePin, cfg.Buttons.CalibratePin, cfg.Buttons.Debounce)
		if err != nil {
			logrus.WithError(err).Warn("buttons unavailable, continuing without them")
		} else {
			g.Go(func() error {
				return grader.ServeButtons(ctx, w.Presses(), ctrl, cfg.Calibration.ReferenceWeight)
			})
			g.Go(func() error {
				<-ctx.Done()
				return w.Close()
			})
		}
	}

	g.Go(func() error {
		refreshNetwork(ctx, tracker, status.DefaultNetworkEnvFile, networkRefresh)
		return nil
	})

	err = g.Wait()
	if err != nil {
		logrus.WithError(err).Error("fruit-grader stopped")
		return err
	}
	logrus.Info("fruit-grader stopped")
	return nil
}

func openSensor(cfg *config.Config) loadcell.OpenFunc {
	return func() (loadcell.Sensor, error) {
		return loadcell.NewHX711(loadcell.Config{
			Chip:          cfg.Sensor.Chip,
			DoutPin:       cfg.Sensor.DoutPin,
			SckPin:        cfg.Sensor.SckPin,
			CountsPerUnit: cfg.Sensor.CountsPerUnit,
			Average:       cfg.Sensor.Average,
			ReadyTimeout:  cfg.Sensor.ReadyTimeout,
		})
	}
}

// newSink builds the report sink for the configured mode. conn is nil unless
// the sink keeps a connection whose state is worth showing.
func newSink(cfg *config.Config) (sink report.Sink, conn report.ConnectionStatus, closeFn func(), err error) {
	switch cfg.Report.Mode {
	case config.ReportHTTP:
		return report.NewHTTPSink(cfg.Report.URL, cfg.Report.Timeout), nil, func() {}, nil
	case config.ReportMQTT:
		s, err := report.NewMQTTSink(report.MQTTConfig{
			Broker:     cfg.Report.Broker,
			Topic:      cfg.Report.Topic,
			BufferSize: cfg.Report.BufferSize,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { _ = s.Close() }, nil
	default:
		return report.Discard{}, nil, func() {}, nil
	}
}

// trackedReporter submits events to the dispatcher and mirrors its counters
// into the status tracker.
type trackedReporter struct {
	dispatcher *report.Dispatcher
	tracker    *status.Tracker
}

func (r *trackedReporter) TrySubmit(ev report.Event) bool {
	ok := r.dispatcher.TrySubmit(ev)
	r.sync()
	return ok
}

func (r *trackedReporter) sync() {
	r.tracker.SetReports(status.ReportCounts(r.dispatcher.Stats()))
}

func refreshNetwork(ctx context.Context, tracker *status.Tracker, path string, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if net := status.ReadNetworkInfo(path); net != nil {
				tracker.SetNetwork(net)
			}
		}
	}
}

func statusConfig(cfg *config.Config) status.Config {
	c := status.Config{
		DeviceID:   cfg.Device.ID,
		Product:    cfg.Product.Name,
		TickMs:     cfg.Loop.Tick.Milliseconds(),
		ReportMode: cfg.Report.Mode,
		HTTPAddr:   cfg.HTTP.Addr,
	}
	switch cfg.Report.Mode {
	case config.ReportHTTP:
		c.ReportTo = cfg.Report.URL
	case config.ReportMQTT:
		c.ReportTo = cfg.Report.Broker + " " + cfg.Report.Topic
	}
	return c
}

func graderConfig(cfg *config.Config) grader.Config {
	s := cfg.Audio.Sounds
	return grader.Config{
		DeviceID:           cfg.Device.ID,
		WindowSize:         cfg.Loop.WindowSize,
		StabilityThreshold: cfg.Loop.StabilityThreshold,
		ZeroThreshold:      cfg.Loop.ZeroThreshold,
		AllowDirectStable:  cfg.Loop.AllowDirectStable,
		AutoZeroEnabled:    cfg.AutoZero.Enabled,
		AutoZero: logic.AutoZeroConfig{
			Threshold:   cfg.AutoZero.Threshold,
			Hold:        cfg.AutoZero.Hold,
			MinInterval: cfg.AutoZero.MinInterval,
		},
		MinWeight: cfg.Product.MinWeight,
		MaxWeight: cfg.Product.MaxWeight,
		Bands:     cfg.Bands(),
		Calibration: calibration.Procedure{
			Samples:   cfg.Calibration.Samples,
			Interval:  cfg.Calibration.SampleInterval,
			MaxFactor: cfg.Calibration.MaxFactor,
		},
		Sounds: grader.Sounds{
			Zero:        s.Zero,
			Error:       s.Error,
			Overload:    s.Overload,
			Calibrated:  s.Calibrated,
			SensorRetry: s.SensorRetry,
			Tare:        s.Tare,
		},
	}
}
