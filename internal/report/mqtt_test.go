package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	failNext   int
	published  [][]byte
	topics     []string
	qos        []byte
	disconnect bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return doneToken{err: errors.New("broker hiccup")}
	}
	c.topics = append(c.topics, topic)
	c.qos = append(c.qos, qos)
	c.published = append(c.published, payload.([]byte))
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect = true
}

func (c *fakeClient) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

func TestMQTTSinkPublishesConnected(t *testing.T) {
	c := &fakeClient{connected: true}
	s := newMQTTSink(c, "", 0)

	assert.Equal(t, Accepted, s.Report(context.Background(), testEvent()))
	require.Len(t, c.published, 1)
	assert.Equal(t, DefaultTopic, c.topics[0])
	assert.Equal(t, byte(1), c.qos[0])
	assert.Contains(t, string(c.published[0]), `"event_id":"6a1f4c2e-8d3b-4e55-9a77-0c1d2e3f4a5b"`)
}

func TestMQTTSinkBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	s := newMQTTSink(c, "grader/test", 10)

	for i := 0; i < 3; i++ {
		assert.Equal(t, Unreachable, s.Report(context.Background(), NewEvent("5L", 180, time.Now(), 1)))
	}
	assert.Equal(t, 3, s.Buffered())
	assert.Empty(t, c.published)

	c.setConnected(true)
	s.replay()
	assert.Equal(t, 0, s.Buffered())
	assert.Len(t, c.published, 3)
}

func TestMQTTSinkBuffersFailedPublish(t *testing.T) {
	c := &fakeClient{connected: true, failNext: 1}
	s := newMQTTSink(c, "", 10)

	assert.Equal(t, Unreachable, s.Report(context.Background(), testEvent()))
	assert.Equal(t, 1, s.Buffered())

	s.replay()
	assert.Equal(t, 0, s.Buffered())
	assert.Len(t, c.published, 1)
}

func TestMQTTSinkReplayKeepsUnsent(t *testing.T) {
	c := &fakeClient{}
	s := newMQTTSink(c, "", 10)
	for i := 0; i < 3; i++ {
		s.Report(context.Background(), testEvent())
	}

	c.mu.Lock()
	c.connected = true
	c.failNext = 1
	c.mu.Unlock()

	s.replay()
	assert.Equal(t, 3, s.Buffered(), "first publish failed, nothing sent")

	s.replay()
	assert.Equal(t, 0, s.Buffered())
}

func TestMQTTSinkClose(t *testing.T) {
	c := &fakeClient{connected: true}
	s := newMQTTSink(c, "", 1)
	require.NoError(t, s.Close())
	assert.True(t, c.disconnect)
	assert.True(t, s.IsConnected())
}

func TestMQTTSinkBacklogKeepsNewest(t *testing.T) {
	c := &fakeClient{}
	s := newMQTTSink(c, "", 2)
	for _, g := range []string{"S", "M", "L"} {
		s.Report(context.Background(), NewEvent(g, 120, time.Now(), 1))
	}
	assert.Equal(t, 2, s.Buffered())
	assert.Equal(t, int64(1), s.Dropped())

	c.setConnected(true)
	s.replay()
	require.Len(t, c.published, 2)
	assert.Contains(t, string(c.published[0]), `"size":"M"`)
	assert.Contains(t, string(c.published[1]), `"size":"L"`)
}
