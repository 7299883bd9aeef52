package report

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one HTTP report.
const DefaultTimeout = 10 * time.Second

// HTTPSink posts each event as JSON to a web-app endpoint.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink returns a sink posting to url.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Report posts ev. 200 is Accepted, any other status Rejected, and a
// transport failure Unreachable.
func (s *HTTPSink) Report(ctx context.Context, ev Event) Result {
	log := logrus.WithFields(logrus.Fields{"component": "report", "event_id": ev.ID})

	body, err := FormatHTTPPayload(ev)
	if err != nil {
		log.WithError(err).Error("failed to format report")
		return Rejected
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("failed to build report request")
		return Rejected
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("collector unreachable")
		return Unreachable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("collector rejected report")
		return Rejected
	}
	return Accepted
}
