package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string       `json:"state"`
	Weight        float64      `json:"weight"`
	Stable        bool         `json:"stable"`
	Overloaded    bool         `json:"overloaded"`
	Factor        float64      `json:"calibration_factor"`
	SensorReady   bool         `json:"sensor_ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Last          *ReadingJSON `json:"last_reading,omitempty"`
	Grades        []GradeJSON  `json:"grade_counts"`
	Reports       ReportsJSON  `json:"reports"`
	AutoZero      AutoZeroJSON `json:"auto_zero"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the last graded reading.
type ReadingJSON struct {
	Grade     string  `json:"grade"`
	Color     string  `json:"color,omitempty"`
	Weight    float64 `json:"weight"`
	Timestamp string  `json:"timestamp"`
}

// GradeJSON is one grade counter.
type GradeJSON struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReportsJSON reports delivery outcomes.
type ReportsJSON struct {
	Accepted    int64 `json:"accepted"`
	Rejected    int64 `json:"rejected"`
	Unreachable int64 `json:"unreachable"`
	Dropped     int64 `json:"dropped"`
	Connected   *bool `json:"connected,omitempty"`
}

// AutoZeroJSON reports automatic re-tares.
type AutoZeroJSON struct {
	Count int    `json:"count"`
	Last  string `json:"last,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DeviceID   int    `json:"device_id"`
	Product    string `json:"product"`
	TickMs     int64  `json:"tick_ms"`
	ReportMode string `json:"report_mode"`
	ReportTo   string `json:"report_to,omitempty"`
	HTTPAddr   string `json:"http_addr"`
}

// Build converts a snapshot into its JSON form.
func Build(snap Snapshot) StatusJSON {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		Weight:        snap.Weight,
		Stable:        snap.Stable,
		Overloaded:    snap.Overloaded,
		Factor:        snap.Factor,
		SensorReady:   snap.SensorReady,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Grades:        make([]GradeJSON, len(snap.Grades)),
		Reports: ReportsJSON{
			Accepted:    snap.Reports.Accepted,
			Rejected:    snap.Reports.Rejected,
			Unreachable: snap.Reports.Unreachable,
			Dropped:     snap.Reports.Dropped,
			Connected:   snap.ReportConnected,
		},
		AutoZero: AutoZeroJSON{Count: snap.AutoZeros},
		Config: ConfigJSON{
			DeviceID:   snap.Config.DeviceID,
			Product:    snap.Config.Product,
			TickMs:     snap.Config.TickMs,
			ReportMode: snap.Config.ReportMode,
			ReportTo:   snap.Config.ReportTo,
			HTTPAddr:   snap.Config.HTTPAddr,
		},
	}
	for i, g := range snap.Grades {
		inner.Grades[i] = GradeJSON{Name: g.Name, Count: g.Count}
	}
	if !snap.LastAutoZero.IsZero() {
		inner.AutoZero.Last = snap.LastAutoZero.UTC().Format(time.RFC3339)
	}
	if snap.Last != nil {
		inner.Last = &ReadingJSON{
			Grade:     snap.Last.Grade,
			Color:     snap.Last.Color,
			Weight:    snap.Last.Weight,
			Timestamp: snap.Last.At.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return StatusJSON{Status: inner}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}
