package server

import (
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-relay/internal/metrics"
	"github.com/Tyrowin/gochat-relay/internal/relay"
)

// TestHub_WorkedExample runs two named participants, a third rejected at
// capacity, a message, and a departure through real WebSocket connections.
func TestHub_WorkedExample(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxUsers: 2, MaxHistory: 3})

	alice, history := env.join(t, "Alice")
	req.Empty(history)
	req.Equal([]string{"Alice"}, readUntil(t, alice, relay.EventPresenceUpdate).Users)

	bob, _ := env.join(t, "Bob")
	req.Equal([]string{"Alice", "Bob"}, readUntil(t, alice, relay.EventPresenceUpdate).Users)
	req.Equal([]string{"Alice", "Bob"}, readUntil(t, bob, relay.EventPresenceUpdate).Users)

	carol := env.connect(t)
	notice := readEvent(t, carol)
	req.Equal(relay.EventCapacityNotice, notice.Type)
	req.Equal(relay.CapacityNotice, notice.Notice)
	_, _, err := carol.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
	waitForOnline(t, env.hub, "Alice", "Bob")

	sendCommand(t, alice, relay.Command{Type: relay.CommandSendMessage, Text: "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readUntil(t, conn, relay.EventMessage).Message
		req.NotNil(msg)
		req.Equal("Alice", msg.Author)
		req.Equal("hi", msg.Text)
		req.NotEmpty(msg.Time)
	}

	req.NoError(bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	req.Equal([]string{"Alice"}, readUntil(t, alice, relay.EventPresenceUpdate).Users)
	waitForOnline(t, env.hub, "Alice")

	req.Equal(int64(1), env.metrics.Count(metrics.ConnectionsRejected))
	req.Equal(int64(2), env.metrics.Count(metrics.ConnectionsAccepted))
	req.Equal(int64(1), env.metrics.Count(metrics.MessagesRelayed))
}

func TestHub_NewConnectionReceivesHistoryFirst(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxHistory: 3})

	alice, _ := env.join(t, "Alice")
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		sendCommand(t, alice, relay.Command{Type: relay.CommandSendMessage, Text: text})
		req.Equal(text, readUntil(t, alice, relay.EventMessage).Message.Text)
	}

	late := env.connect(t)
	first := readEvent(t, late)
	req.Equal(relay.EventHistory, first.Type)

	texts := make([]string, 0, len(first.History))
	for _, msg := range first.History {
		req.Equal("Alice", msg.Author)
		texts = append(texts, msg.Text)
	}
	req.Equal([]string{"three", "four", "five"}, texts)
}

func TestHub_UnnamedConnectAndLeaveIsSilent(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxUsers: 5, MaxHistory: 5})

	alice, _ := env.join(t, "Alice")
	readUntil(t, alice, relay.EventPresenceUpdate)

	lurker := env.connect(t)
	req.Equal(relay.EventHistory, readEvent(t, lurker).Type)
	req.NoError(lurker.Close())

	req.NoError(alice.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	_, _, err := alice.ReadMessage()
	var netErr net.Error
	req.True(errors.As(err, &netErr) && netErr.Timeout(), "expected no event, got %v", err)

	waitForOnline(t, env.hub, "Alice")
}

func TestHub_UnnamedSenderUsesPlaceholder(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxHistory: 5, Placeholder: "guest"})

	conn := env.connect(t)
	req.Equal(relay.EventHistory, readEvent(t, conn).Type)

	sendCommand(t, conn, relay.Command{Type: relay.CommandSendMessage, Text: "who am I"})
	req.Equal("guest", readUntil(t, conn, relay.EventMessage).Message.Author)
}

func TestHub_MarkupIsEscaped(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxHistory: 5})

	conn, _ := env.join(t, "<script>x</script>")
	users := readUntil(t, conn, relay.EventPresenceUpdate).Users
	req.Equal([]string{"&lt;script&gt;x&lt;/script&gt;"}, users)

	sendCommand(t, conn, relay.Command{Type: relay.CommandSendMessage, Text: `<img src=x onerror="a()">`})
	msg := readUntil(t, conn, relay.EventMessage).Message
	req.Equal("&lt;img src=x onerror=&quot;a()&quot;&gt;", msg.Text)
}

func TestHub_BlankMessagesAreNotRelayed(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxHistory: 5})

	conn, _ := env.join(t, "Alice")
	readUntil(t, conn, relay.EventPresenceUpdate)

	sendCommand(t, conn, relay.Command{Type: relay.CommandSendMessage, Text: "   "})
	sendCommand(t, conn, relay.Command{Type: relay.CommandSendMessage, Text: "real"})

	req.Equal("real", readEvent(t, conn).Message.Text)
	status, err := env.hub.Status(t.Context())
	req.NoError(err)
	req.Equal(1, status.History)
}

func TestHub_InvalidFramesAreDropped(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{MaxHistory: 5})

	conn, _ := env.join(t, "Alice")
	readUntil(t, conn, relay.EventPresenceUpdate)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendCommand(t, conn, relay.Command{Type: "shout", Text: "HEY"})
	sendCommand(t, conn, relay.Command{Type: relay.CommandSendMessage, Text: "still here"})

	req.Equal("still here", readUntil(t, conn, relay.EventMessage).Message.Text)
	req.Equal(int64(2), env.metrics.Count(metrics.CommandsInvalid))
}

func TestHub_RenameKeepsOldNameOnline(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{})

	conn, _ := env.join(t, "Alice")
	readUntil(t, conn, relay.EventPresenceUpdate)

	sendCommand(t, conn, relay.Command{Type: relay.CommandSetName, Name: "Alicia"})
	req.Equal([]string{"Alice", "Alicia"}, readUntil(t, conn, relay.EventPresenceUpdate).Users)
}

func TestHub_DisallowedOriginIsRejected(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})

	headers := http.Header{}
	headers.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL, headers)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, ChatConfig{})

	conn := env.connect(t)
	req.Equal(relay.EventHistory, readEvent(t, conn).Type)

	req.NoError(env.hub.Shutdown(2 * time.Second))

	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	req.ErrorIs(env.hub.Register(&Client{}), ErrHubClosed)
	_, err = env.hub.Status(t.Context())
	req.ErrorIs(err, ErrHubClosed)
}

func TestHub_ClientCount(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	require.Equal(t, 0, env.hub.ClientCount())

	conn := env.connect(t)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
