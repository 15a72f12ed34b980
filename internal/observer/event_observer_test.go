package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []AlertEvent
	ctxErr []error
}

func (r *recordingObserver) OnEvent(ctx context.Context, event AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.ctxErr = append(r.ctxErr, ctx.Err())
}

func (r *recordingObserver) GetObserverName() string { return r.name }

func (r *recordingObserver) received() []AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AlertEvent(nil), r.events...)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AlertEvent) { panic("observer exploded") }
func (panickingObserver) GetObserverName() string                      { return "panicking_observer" }

func newPublisher(t *testing.T) *EventPublisher {
	t.Helper()
	p, err := NewEventPublisher()
	require.NoError(t, err)
	return p
}

func TestNewAlertEvent(t *testing.T) {
	before := time.Now().UnixMilli()
	event := NewAlertEvent(ImageCompression, "Compressing image")
	after := time.Now().UnixMilli()

	assert.Equal(t, ImageCompression, event.Type)
	assert.Equal(t, "Compressing image", event.Message)
	assert.GreaterOrEqual(t, event.Timestamp, before)
	assert.LessOrEqual(t, event.Timestamp, after)

	body, err := json.Marshal(AlertEvent{Type: ImageCompression, Message: "Compressing image", Timestamp: 1700000000000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ImageCompression","message":"Compressing image","timestamp":1700000000000}`, string(body))
}

func TestEventPublisher_DeliversToAllObservers(t *testing.T) {
	p := newPublisher(t)
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	p.Subscribe(first)
	p.Subscribe(second)

	p.Publish(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))
	p.Publish(context.Background(), NewAlertEvent("OpenAI", "Sending screenshot to OpenAI"))
	p.Wait()

	for _, obs := range []*recordingObserver{first, second} {
		events := obs.received()
		require.Len(t, events, 2, obs.name)
		assert.Equal(t, []EventType{ImageCompression, "OpenAI"}, []EventType{events[0].Type, events[1].Type})
	}
}

func TestEventPublisher_PreservesPublishOrder(t *testing.T) {
	p := newPublisher(t)
	obs := &recordingObserver{name: "ordered"}
	p.Subscribe(obs)

	var expected []string
	for i := 0; i < 50; i++ {
		msg := fmt.Sprintf("event %d", i)
		expected = append(expected, msg)
		p.Publish(context.Background(), NewAlertEvent(ImageCompression, msg))
	}
	p.Wait()

	var got []string
	for _, e := range obs.received() {
		got = append(got, e.Message)
	}
	assert.Equal(t, expected, got)
}

func TestEventPublisher_ObserverContextOutlivesRequest(t *testing.T) {
	p := newPublisher(t)
	obs := &recordingObserver{name: "ctx"}
	p.Subscribe(obs)

	ctx, cancel := context.WithCancel(context.Background())
	p.Publish(ctx, NewAlertEvent(ImageCompression, "Compressing image"))
	cancel()
	p.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.ctxErr, 1)
	assert.NoError(t, obs.ctxErr[0])
}

func TestEventPublisher_PanickingObserverIsIsolated(t *testing.T) {
	p := newPublisher(t)
	obs := &recordingObserver{name: "healthy"}
	p.Subscribe(panickingObserver{})
	p.Subscribe(obs)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))
		p.Wait()
	})
	assert.Len(t, obs.received(), 1)
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	p := newPublisher(t)
	obs := &recordingObserver{name: "gone"}
	p.Subscribe(obs)
	p.Unsubscribe(obs)

	p.Publish(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))
	p.Wait()

	assert.Empty(t, obs.received())
}

func TestEventPublisher_NoObservers(t *testing.T) {
	p := newPublisher(t)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))
		p.Wait()
	})
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	m.OnEvent(context.Background(), AlertEvent{Type: ImageCompression, Timestamp: 10})
	m.OnEvent(context.Background(), AlertEvent{Type: "OpenAI", Timestamp: 20})
	m.OnEvent(context.Background(), AlertEvent{Type: ImageCompression, Timestamp: 15})

	metrics := m.GetMetrics()
	assert.Equal(t, int64(3), metrics["total_events"])
	assert.Equal(t, int64(20), metrics["last_event_at"])
	assert.Equal(t, map[string]int64{"ImageCompression": 2, "OpenAI": 1}, metrics["events"])
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(log).OnEvent(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Compressing image", entry["msg"])
	assert.Equal(t, "ImageCompression", entry["event_type"])
}

func TestStreamObserver_BroadcastsToClients(t *testing.T) {
	stream := NewStreamObserver()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		unregister := stream.Register(conn)
		defer unregister()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return stream.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	p := newPublisher(t)
	p.Subscribe(stream)
	p.Publish(context.Background(), NewAlertEvent(ImageCompression, "Compressing image"))
	p.Wait()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received AlertEvent
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, ImageCompression, received.Type)
	assert.Equal(t, "Compressing image", received.Message)

	conn.Close()
	require.Eventually(t, func() bool { return stream.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
