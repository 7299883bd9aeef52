// Package report delivers graded readings to a remote collector.
package report

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the collector's timestamp format.
const TimestampLayout = "2006/01/02 15:04:05"

// Result is the outcome of one delivery attempt.
type Result int

const (
	Accepted Result = iota
	Rejected
	Unreachable
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "ACCEPTED"
	case Rejected:
		return "REJECTED"
	case Unreachable:
		return "UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

// Event is one graded reading, produced once per stability episode.
type Event struct {
	ID        uuid.UUID
	Grade     string
	Weight    float64
	Timestamp time.Time
	DeviceID  int
}

// NewEvent stamps a fresh event ID.
func NewEvent(grade string, weight float64, ts time.Time, deviceID int) Event {
	return Event{
		ID:        uuid.New(),
		Grade:     grade,
		Weight:    weight,
		Timestamp: ts,
		DeviceID:  deviceID,
	}
}

// Sink delivers events. Implementations must not retry forever: the
// dispatcher calls Report once per event.
type Sink interface {
	Report(ctx context.Context, ev Event) Result
}

// ConnectionStatus is implemented by sinks with a persistent connection.
type ConnectionStatus interface {
	IsConnected() bool
}

// HTTPPayload is the body posted to the collector.
type HTTPPayload struct {
	Size      string `json:"size"`
	Weight    int    `json:"weight"`
	Timestamp string `json:"timestamp"`
	DeviceID  int    `json:"device_id"`
}

// FormatHTTPPayload creates the collector JSON body for ev.
func FormatHTTPPayload(ev Event) ([]byte, error) {
	return json.Marshal(HTTPPayload{
		Size:      ev.Grade,
		Weight:    int(math.Round(ev.Weight)),
		Timestamp: ev.Timestamp.Format(TimestampLayout),
		DeviceID:  ev.DeviceID,
	})
}

// MQTTPayload is the message published per reading.
type MQTTPayload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains the reading details.
type ReadingPayload struct {
	EventID   string `json:"event_id"`
	Size      string `json:"size"`
	Weight    int    `json:"weight"`
	Timestamp string `json:"timestamp"`
	DeviceID  int    `json:"device_id"`
}

// FormatMQTTPayload creates the JSON payload for ev.
func FormatMQTTPayload(ev Event) ([]byte, error) {
	return json.Marshal(MQTTPayload{
		Reading: ReadingPayload{
			EventID:   ev.ID.String(),
			Size:      ev.Grade,
			Weight:    int(math.Round(ev.Weight)),
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			DeviceID:  ev.DeviceID,
		},
	})
}

// Discard accepts and drops every event. Used when reporting is off.
type Discard struct{}

// Report implements Sink.
func (Discard) Report(context.Context, Event) Result { return Accepted }
