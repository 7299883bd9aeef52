package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultTopic is the MQTT topic for graded readings.
const DefaultTopic = "grader/readings"

// DefaultBufferSize is how many readings are held while disconnected.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// MQTTConfig configures an MQTTSink.
type MQTTConfig struct {
	Broker     string
	ClientID   string
	Topic      string
	BufferSize int
}

// publisher is the subset of paho.Client the sink uses.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes readings at QoS 1. Readings published while the broker
// is away are buffered and replayed on reconnect.
type MQTTSink struct {
	client publisher
	topic  string

	mu  sync.Mutex
	buf *backlog
}

// NewMQTTSink connects to the broker. An unreachable broker is not an
// error: the client keeps retrying and readings are buffered meanwhile.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "fruit-grader"
	}
	s := newMQTTSink(nil, cfg.Topic, cfg.BufferSize)

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logrus.WithField("broker", cfg.Broker).Info("mqtt connected")
			s.replay()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logrus.WithError(err).Warn("mqtt connection lost")
		})

	client := paho.NewClient(opts)
	s.client = client

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logrus.WithField("broker", cfg.Broker).Warn("mqtt broker not reachable yet, buffering readings")
		return s, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

func newMQTTSink(client publisher, topic string, bufferSize int) *MQTTSink {
	if topic == "" {
		topic = DefaultTopic
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MQTTSink{client: client, topic: topic, buf: newBacklog(bufferSize)}
}

// Report publishes ev, or buffers it and returns Unreachable.
func (s *MQTTSink) Report(_ context.Context, ev Event) Result {
	payload, err := FormatMQTTPayload(ev)
	if err != nil {
		logrus.WithError(err).Error("failed to format mqtt payload")
		return Rejected
	}
	r := pendingReading{id: ev.ID, payload: payload}

	if !s.client.IsConnected() {
		s.hold(r)
		return Unreachable
	}
	if err := s.publish(r); err != nil {
		logrus.WithError(err).WithField("event_id", ev.ID).Warn("mqtt publish failed, buffering")
		s.hold(r)
		return Unreachable
	}
	return Accepted
}

// IsConnected reports the broker connection state.
func (s *MQTTSink) IsConnected() bool {
	return s.client.IsConnected()
}

// Buffered returns the number of readings waiting for the broker.
func (s *MQTTSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.len()
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(1000)
	return nil
}

func (s *MQTTSink) hold(r pendingReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.add(r)
}

func (s *MQTTSink) publish(r pendingReading) error {
	token := s.client.Publish(s.topic, 1, false, r.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// replay publishes the backlog oldest first and stops at the first failure,
// leaving the rest in order for the next reconnect.
func (s *MQTTSink) replay() {
	sent := 0
	for {
		s.mu.Lock()
		r, ok := s.buf.front()
		s.mu.Unlock()
		if !ok {
			break
		}
		if err := s.publish(r); err != nil {
			logrus.WithError(err).WithField("remaining", s.Buffered()).Warn("mqtt replay interrupted")
			break
		}
		s.mu.Lock()
		// A full backlog may have discarded r while it was being published.
		if cur, ok := s.buf.front(); ok && cur.id == r.id {
			s.buf.pop()
		}
		s.mu.Unlock()
		sent++
	}
	if sent > 0 {
		logrus.WithField("count", sent).Info("replayed buffered readings")
	}
}

// Dropped returns how many buffered readings were discarded because the
// backlog was full.
func (s *MQTTSink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.dropped
}
