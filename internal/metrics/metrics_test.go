package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	req := require.New(t)
	m := New()

	m.Incr(ConnectionsOpen, 3)
	m.Decr(ConnectionsOpen, 1)
	m.Incr(MessagesRelayed, 1)
	m.Set(OnlineUsers, 7)

	req.Equal(int64(2), m.Count(ConnectionsOpen))
	req.Equal(int64(1), m.Count(MessagesRelayed))
	req.Equal(int64(7), m.Count(OnlineUsers))
	req.Equal(int64(0), m.Count("never.registered"))
	req.Equal(map[string]int64{
		ConnectionsOpen: 2,
		MessagesRelayed: 1,
		OnlineUsers:     7,
	}, m.Snapshot())
}

func TestMetrics_RegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Incr(ConnectionsAccepted, 1)
	require.Equal(t, int64(0), b.Count(ConnectionsAccepted))
}

func TestMetrics_WriteJSON(t *testing.T) {
	req := require.New(t)
	m := New()
	m.Incr(ConnectionsRejected, 2)

	var buf bytes.Buffer
	m.WriteJSON(&buf)

	var decoded map[string]map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &decoded))
	req.Contains(decoded, ConnectionsRejected)
	req.EqualValues(2, decoded[ConnectionsRejected]["count"])
}

func TestMetrics_ReportLogsUntilCancelled(t *testing.T) {
	req := require.New(t)
	m := New()
	m.Incr(MessagesRelayed, 5)

	var buf safeBuffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Report(ctx, log, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Report did not return after cancel")
	}
	req.GreaterOrEqual(strings.Count(buf.String(), "messages.relayed=5"), 2)
}

func TestMetrics_ReportDisabledWithZeroTick(t *testing.T) {
	done := make(chan struct{})
	go func() {
		New().Report(context.Background(), slog.New(slog.DiscardHandler), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report with zero tick should return immediately")
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
