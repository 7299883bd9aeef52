package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/fruit-grader/internal/status"
	"github.com/sweeney/fruit-grader/internal/web"
)

// clientTimeout is longer than the server's command timeout.
const clientTimeout = 45 * time.Second

// daemonClient talks to the daemon's HTTP API.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(base string) *daemonClient {
	return &daemonClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: clientTimeout},
	}
}

func (c *daemonClient) Status() (*status.StatusJSON, error) {
	resp, err := c.http.Get(c.base + "/index.json")
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var s status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &s, nil
}

func (c *daemonClient) Tare() error {
	resp, err := c.http.Post(c.base+"/api/tare", "application/json", nil)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *daemonClient) Calibrate(reference float64) (float64, error) {
	body, err := json.Marshal(web.CalibrateRequest{Reference: reference})
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Post(c.base+"/api/calibrate", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, apiError(resp)
	}
	var out web.CalibrateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode calibration result: %w", err)
	}
	return out.Factor, nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}

// NewStatusCommand prints the live status of a running daemon.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the status of the running daemon",
		GroupID: gOperator,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newDaemonClient(daemonAddr).Status()
			if err != nil {
				return err
			}
			printStatus(os.Stdout, &s.Status)
			return nil
		},
	}
}

func printStatus(w io.Writer, s *status.StatusInner) {
	state := s.State
	switch {
	case s.Overloaded:
		state = color.RedString("%s (overload)", state)
	case s.Stable:
		state = color.GreenString("%s", state)
	}
	fmt.Fprintf(w, "%s %s\n", bold("State:"), state)
	fmt.Fprintf(w, "%s %.0f g\n", bold("Weight:"), s.Weight)
	fmt.Fprintf(w, "%s %.4f\n", bold("Calibration factor:"), s.Factor)
	fmt.Fprintf(w, "%s %s\n", bold("Sensor ready:"), yesNo(s.SensorReady))
	if s.Last != nil {
		fmt.Fprintf(w, "%s %s %.0f g at %s\n", bold("Last reading:"), s.Last.Grade, s.Last.Weight, s.Last.Timestamp)
	}
	fmt.Fprintln(w, bold("Grades:"))
	for _, g := range s.Grades {
		fmt.Fprintf(w, "  %-6s %d\n", g.Name, g.Count)
	}
	fmt.Fprintf(w, "%s accepted=%d rejected=%d unreachable=%d dropped=%d\n", bold("Reports:"),
		s.Reports.Accepted, s.Reports.Rejected, s.Reports.Unreachable, s.Reports.Dropped)
	if s.Reports.Connected != nil {
		fmt.Fprintf(w, "%s %s\n", bold("Broker connected:"), yesNo(*s.Reports.Connected))
	}
	fmt.Fprintf(w, "%s %d\n", bold("Auto-zeros:"), s.AutoZero.Count)
}

func yesNo(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

// NewTareCommand asks the running daemon to tare.
func NewTareCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tare",
		Short:   "Tare the scale of the running daemon",
		GroupID: gOperator,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := newDaemonClient(daemonAddr).Tare(); err != nil {
				return fmt.Errorf("failed to tare: %w", err)
			}
			fmt.Println("Scale tared.")
			return nil
		},
	}
}

var calibrateReference float64

// NewCalibrateCommand asks the running daemon to calibrate against a
// reference weight already on the scale.
func NewCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibrate",
		Short:   "Calibrate the running daemon with a reference weight on the scale",
		GroupID: gOperator,
		RunE: func(_ *cobra.Command, _ []string) error {
			factor, err := newDaemonClient(daemonAddr).Calibrate(calibrateReference)
			if err != nil {
				return fmt.Errorf("failed to calibrate: %w", err)
			}
			fmt.Printf("Calibrated, factor %.4f\n", factor)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&calibrateReference, "reference", "r", 0, "reference weight in grams (0 uses the daemon's configured weight)")
	return cmd
}
