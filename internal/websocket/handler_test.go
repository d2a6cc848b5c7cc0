package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/internal/config"
	"expensecli/pkg/contracts/events"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHandlerEndToEnd(t *testing.T) {
	hub := startHub(t)
	cfg := config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024, PongWait: time.Minute, PingPeriod: 30 * time.Second}
	server := httptest.NewServer(NewHandler(hub, cfg, []string{"http://localhost:3000"}, quietLogger()))
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var greeting events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, events.MessageTypeConnect, greeting.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	hub.Publish(context.Background(), events.NewMessage(events.MessageTypeAnalysisStarted, "trace-e2e",
		events.AnalysisStarted{AnalysisID: "an-1", DatasetID: "ds-1", Rows: 36, Horizon: 6}))

	var started events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&started))
	assert.Equal(t, events.MessageTypeAnalysisStarted, started.Type)
	assert.Equal(t, "trace-e2e", started.TraceID)
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewHandler(hub, config.WebSocketConfig{}, []string{"http://localhost:3000"}, quietLogger()))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.ClientCount())
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://a"}, "", true},
		{"empty allow list", nil, "http://anything", true},
		{"listed", []string{"http://a", "http://b"}, "http://b", true},
		{"case insensitive", []string{"http://Localhost:3000"}, "http://localhost:3000", true},
		{"wildcard", []string{"*"}, "http://x", true},
		{"not listed", []string{"http://a"}, "http://c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
