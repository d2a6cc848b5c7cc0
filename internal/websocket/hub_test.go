package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/internal/config"
	"expensecli/internal/infrastructure"
	"expensecli/pkg/contracts/events"
)

// fakeConn is an in-memory Connection. Reads are fed through incoming and
// block until Close.
type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	types    []int
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, messageType)
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-f.incoming:
		return websocket.TextMessage, msg, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64)               {}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string               { return "10.0.0.1:5000" }

func (f *fakeConn) textMessages() []events.WebSocketMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.WebSocketMessage
	for i, data := range f.written {
		if f.types[i] != websocket.TextMessage {
			continue
		}
		var msg events.WebSocketMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metricsConfig() config.TelemetryConfig {
	return config.TelemetryConfig{ServiceName: "websocket-test", MetricsEnabled: true}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(quietLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func connectClient(t *testing.T, hub *Hub) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	client := NewClient(hub, conn, "trace-1", time.Minute, 0, quietLogger())
	hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
	t.Cleanup(func() { conn.Close() })
	return client, conn
}

func waitForMessages(t *testing.T, conn *fakeConn, n int) []events.WebSocketMessage {
	t.Helper()
	var msgs []events.WebSocketMessage
	require.Eventually(t, func() bool {
		msgs = conn.textMessages()
		return len(msgs) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return msgs
}

func TestHubRegisterSendsGreeting(t *testing.T) {
	hub := startHub(t)
	client, conn := connectClient(t, hub)

	msgs := waitForMessages(t, conn, 1)
	assert.Equal(t, events.MessageTypeConnect, msgs[0].Type)
	assert.Equal(t, "trace-1", msgs[0].TraceID)

	data, ok := msgs[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, client.ID(), data["client_id"])
	assert.Equal(t, "connected", data["status"])

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubPublishFansOut(t *testing.T) {
	hub := startHub(t)
	_, first := connectClient(t, hub)
	_, second := connectClient(t, hub)
	waitForMessages(t, first, 1)
	waitForMessages(t, second, 1)

	ctx := infrastructure.WithTraceID(context.Background(), "trace-publish")
	hub.Publish(ctx, events.NewMessage(events.MessageTypeDatasetExpired, "", events.DatasetExpired{DatasetID: "ds-1"}))

	for _, conn := range []*fakeConn{first, second} {
		msgs := waitForMessages(t, conn, 2)
		assert.Equal(t, events.MessageTypeDatasetExpired, msgs[1].Type)
		assert.Equal(t, "trace-publish", msgs[1].TraceID)
	}

	assert.Eventually(t, func() bool { return hub.Stats().MessagesSent == 2 }, time.Second, 10*time.Millisecond)
	stats := hub.Stats()
	assert.Equal(t, 2, stats.ActiveClients)
	assert.Equal(t, int64(2), stats.TotalConnections)
	assert.Zero(t, stats.MessagesDropped)
}

func TestHubUnregisterOnConnectionClose(t *testing.T) {
	hub := startHub(t)
	_, conn := connectClient(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := startHub(t)

	// No pumps: the send buffer fills and the hub must drop the client
	conn := newFakeConn()
	client := NewClient(hub, conn, "", time.Minute, 0, quietLogger())
	hub.Register(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		for i := 0; i < 32; i++ {
			hub.Publish(context.Background(), events.NewMessage(events.MessageTypeHeartbeat, "", nil))
		}
		return hub.ClientCount() == 0
	}, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return hub.Stats().MessagesDropped >= 1 }, time.Second, 10*time.Millisecond)
}

func TestHubStopIsIdempotent(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	hub.Start()
	hub.Start()

	_, conn := connectClient(t, hub)
	waitForMessages(t, conn, 1)

	hub.Stop()
	hub.Stop()

	// Publishing after stop is a no-op
	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), events.NewMessage(events.MessageTypeHeartbeat, "", nil))
	})
	assert.Zero(t, hub.ClientCount())
}

func TestHubMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(metricsConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewMetrics(providers.Meter)
	require.NoError(t, err)

	hub := NewHub(quietLogger(), metrics)
	hub.Start()
	defer hub.Stop()

	_, conn := connectClient(t, hub)
	waitForMessages(t, conn, 1)
	hub.Publish(context.Background(), events.NewMessage(events.MessageTypeSystemStatus, "", events.SystemStatusEvent{Status: "ok"}))
	waitForMessages(t, conn, 2)
}
