package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-relay/internal/metrics"
	"github.com/Tyrowin/gochat-relay/internal/relay"
)

const (
	testOrigin = "http://localhost:8080"
	testWait   = 2 * time.Second
	testTick   = 10 * time.Millisecond
)

var discardLog = slog.New(slog.DiscardHandler)

type testEnv struct {
	hub     *Hub
	metrics *metrics.Metrics
	server  *httptest.Server
	wsURL   string
}

// newTestEnv starts a hub and an HTTP test server around it. Both are
// stopped when the test ends.
func newTestEnv(t *testing.T, chat ChatConfig) *testEnv {
	t.Helper()

	cfg := sanitizeConfig(defaultConfig())
	cfg.Chat = chat
	cfg.RateLimit = RateLimitConfig{Burst: 100, RefillInterval: time.Second}

	m := metrics.New()
	hub := NewHub(cfg.RelayConfig(), m, discardLog)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(NewHandlers(hub, cfg, m, discardLog)))
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &testEnv{
		hub:     hub,
		metrics: m,
		server:  srv,
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// connect dials the WebSocket endpoint with an allowed origin.
func (e *testEnv) connect(t *testing.T) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(e.wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join connects, consumes the history event, and sets a name. It returns
// the connection and the history it received.
func (e *testEnv) join(t *testing.T, name string) (*websocket.Conn, []relay.Message) {
	t.Helper()

	conn := e.connect(t)
	evt := readEvent(t, conn)
	require.Equal(t, relay.EventHistory, evt.Type)
	sendCommand(t, conn, relay.Command{Type: relay.CommandSetName, Name: name})
	return conn, evt.History
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd relay.Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func readEvent(t *testing.T, conn *websocket.Conn) relay.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt relay.Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

// readUntil reads events until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want relay.EventType) relay.Event {
	t.Helper()

	for i := 0; i < 20; i++ {
		evt := readEvent(t, conn)
		if evt.Type == want {
			return evt
		}
	}
	t.Fatalf("no %s event received", want)
	return relay.Event{}
}

// waitForOnline polls the hub until the online set equals want.
func waitForOnline(t *testing.T, hub *Hub, want ...string) {
	t.Helper()

	require.Eventually(t, func() bool {
		status, err := hub.Status(t.Context())
		if err != nil {
			return false
		}
		if len(want) == 0 {
			return len(status.Online) == 0
		}
		return slices.Equal(status.Online, want)
	}, testWait, testTick)
}
