package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/sweeney/fruit-grader/internal/calibration"
	"github.com/sweeney/fruit-grader/internal/config"
	"github.com/sweeney/fruit-grader/internal/grader"
	"github.com/sweeney/fruit-grader/internal/loadcell"
	"github.com/sweeney/fruit-grader/internal/logic"
	"github.com/sweeney/fruit-grader/internal/report"
	"github.com/sweeney/fruit-grader/internal/status"
	"github.com/sweeney/fruit-grader/internal/web"
)

func init() {
	color.NoColor = true
}

func loadExample(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "fruit-grader.example.yaml"))
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}
	return cfg
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	want := []string{"run", "validate", "read", "status", "tare", "calibrate"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}
	for _, flag := range []string{"config", "log-level", "addr"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	old := logLevel
	defer func() { logLevel = old }()

	logLevel = "loud"
	if err := setupLogger(); err == nil {
		t.Error("expected error for unknown log level")
	}
	logLevel = "debug"
	if err := setupLogger(); err != nil {
		t.Errorf("setupLogger: %v", err)
	}
}

func TestGraderConfigFromExample(t *testing.T) {
	cfg := loadExample(t)
	gc := graderConfig(cfg)

	if gc.WindowSize != cfg.Loop.WindowSize {
		t.Errorf("WindowSize: got %d, want %d", gc.WindowSize, cfg.Loop.WindowSize)
	}
	if gc.AutoZero.Hold != cfg.AutoZero.Hold {
		t.Errorf("AutoZero.Hold: got %v, want %v", gc.AutoZero.Hold, cfg.AutoZero.Hold)
	}
	if gc.Calibration.Samples != cfg.Calibration.Samples {
		t.Errorf("Calibration.Samples: got %d, want %d", gc.Calibration.Samples, cfg.Calibration.Samples)
	}
	if gc.Sounds.SensorRetry != cfg.Audio.Sounds.SensorRetry {
		t.Errorf("SensorRetry sound: got %q, want %q", gc.Sounds.SensorRetry, cfg.Audio.Sounds.SensorRetry)
	}
	if len(gc.Bands) != 10 {
		t.Fatalf("bands: got %d, want 10", len(gc.Bands))
	}

	_, err := grader.New(gc, grader.Deps{
		Sensor: loadcell.NewFakeSensor(0),
		Store:  calibration.NewMemoryStore(0),
	})
	if err != nil {
		t.Errorf("grader.New with example config: %v", err)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Report.Mode = config.ReportMQTT
	cfg.Report.Broker = "tcp://broker:1883"
	cfg.Report.Topic = "grader/readings"

	sc := statusConfig(cfg)
	if sc.ReportTo != "tcp://broker:1883 grader/readings" {
		t.Errorf("ReportTo: got %q", sc.ReportTo)
	}
	if sc.TickMs != 50 {
		t.Errorf("TickMs: got %d, want 50", sc.TickMs)
	}

	cfg.Report.Mode = config.ReportOff
	if sc := statusConfig(cfg); sc.ReportTo != "" {
		t.Errorf("ReportTo with reporting off: got %q, want empty", sc.ReportTo)
	}
}

func TestNewSink(t *testing.T) {
	cfg := config.Default()

	cfg.Report.Mode = config.ReportOff
	sink, conn, closeFn, err := newSink(cfg)
	if err != nil {
		t.Fatalf("newSink off: %v", err)
	}
	defer closeFn()
	if _, ok := sink.(report.Discard); !ok {
		t.Errorf("off mode: got %T, want report.Discard", sink)
	}
	if conn != nil {
		t.Error("off mode should have no connection status")
	}

	cfg.Report.Mode = config.ReportHTTP
	cfg.Report.URL = "http://example.invalid/exec"
	sink, conn, closeFn, err = newSink(cfg)
	if err != nil {
		t.Fatalf("newSink http: %v", err)
	}
	defer closeFn()
	if _, ok := sink.(*report.HTTPSink); !ok {
		t.Errorf("http mode: got %T, want *report.HTTPSink", sink)
	}
	if conn != nil {
		t.Error("http mode should have no connection status")
	}
}

func TestTrackedReporterMirrorsStats(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{}, nil)
	d := report.NewDispatcher(report.Discard{}, 1)
	r := &trackedReporter{dispatcher: d, tracker: tr}

	ev := report.NewEvent("M", 140, time.Now(), 1)
	if !r.TrySubmit(ev) {
		t.Fatal("first submit should fit the queue")
	}
	if r.TrySubmit(ev) {
		t.Fatal("second submit should be dropped")
	}
	if got := tr.Snapshot().Reports.Dropped; got != 1 {
		t.Errorf("Dropped: got %d, want 1", got)
	}
}

func TestPrintBands(t *testing.T) {
	var buf bytes.Buffer
	printBands(&buf, "apples", 50, []logic.GradeBand{
		{Name: "S", Min: 50, Max: 129, Sound: "s"},
		{Name: "L", Min: 130, Max: logic.Unbounded, Sound: "l"},
	})
	out := buf.String()
	for _, want := range []string{"Product apples", "minimum 50 g", "S", "129 g", "∞", "sound=l"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReading(t *testing.T) {
	c := logic.NewClassifier(50, []logic.GradeBand{
		{Name: "S", Min: 50, Max: 129},
		{Name: "L", Min: 130, Max: logic.Unbounded},
	})
	tests := []struct {
		raw  float64
		want string
	}{
		{raw: 10, want: "grade=-"},
		{raw: 60, want: "grade=S"},
		{raw: 150, want: "grade=L"},
		{raw: 1200, want: "grade=OVERLOAD"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printReading(&buf, tt.raw, 1.0, 1000, c)
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("raw %v: got %q, want %q", tt.raw, buf.String(), tt.want)
		}
	}
}

type stubCommander struct {
	tareErr error
	factor  float64
	calErr  error

	mu  sync.Mutex
	ref float64
}

func (s *stubCommander) TriggerManualOffset(context.Context) error { return s.tareErr }

func (s *stubCommander) TriggerCalibration(_ context.Context, ref float64) (float64, error) {
	s.mu.Lock()
	s.ref = ref
	s.mu.Unlock()
	return s.factor, s.calErr
}

func (s *stubCommander) reference() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

func newDaemon(t *testing.T, cmd web.Commander) *daemonClient {
	t.Helper()
	tr := status.NewTracker(time.Now(), status.Config{DeviceID: 3, Product: "apples"}, []logic.GradeBand{
		{Name: "S", Min: 50, Max: logic.Unbounded},
	})
	tr.Update(logic.StateStable, 88, true, false)
	tr.RecordGrade(0, 88, time.Now())
	srv := web.New(":0", tr, cmd, 100)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return newDaemonClient(ts.URL + "/")
}

func TestClientStatus(t *testing.T) {
	c := newDaemon(t, &stubCommander{})
	s, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if s.Status.State != string(logic.StateStable) {
		t.Errorf("State: got %q", s.Status.State)
	}
	if len(s.Status.Grades) != 1 || s.Status.Grades[0].Count != 1 {
		t.Errorf("Grades: got %+v", s.Status.Grades)
	}

	var buf bytes.Buffer
	printStatus(&buf, &s.Status)
	for _, want := range []string{"State: STABLE", "Weight: 88 g", "Last reading: S 88 g"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestClientTare(t *testing.T) {
	if err := newDaemon(t, &stubCommander{}).Tare(); err != nil {
		t.Errorf("Tare: %v", err)
	}

	err := newDaemon(t, &stubCommander{tareErr: errors.New("bus error")}).Tare()
	if err == nil || !strings.Contains(err.Error(), "bus error") {
		t.Errorf("Tare error: got %v, want daemon error text", err)
	}

	err = newDaemon(t, nil).Tare()
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Tare without controller: got %v, want 503", err)
	}
}

func TestClientCalibrate(t *testing.T) {
	stub := &stubCommander{factor: 0.42}
	factor, err := newDaemon(t, stub).Calibrate(0)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if factor != 0.42 {
		t.Errorf("factor: got %v, want 0.42", factor)
	}
	if ref := stub.reference(); ref != 100 {
		t.Errorf("reference: got %v, want default 100", ref)
	}

	stub = &stubCommander{calErr: calibration.ErrFactorOutOfRange}
	_, err = newDaemon(t, stub).Calibrate(250)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("Calibrate out of range: got %v, want 422", err)
	}
	if ref := stub.reference(); ref != 250 {
		t.Errorf("reference: got %v, want 250", ref)
	}
}

func TestClientDaemonDown(t *testing.T) {
	c := newDaemonClient("http://127.0.0.1:1")
	if _, err := c.Status(); err == nil {
		t.Error("expected error when daemon is not running")
	}
}
