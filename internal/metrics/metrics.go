// Package metrics keeps the server's counters and gauges and reports them
// periodically.
package metrics

import (
	"context"
	"io"
	"log/slog"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metric names reported by the chat server.
const (
	ConnectionsOpen     = "connections.open"
	ConnectionsAccepted = "connections.accepted"
	ConnectionsRejected = "connections.rejected"
	ConnectionsDropped  = "connections.dropped"
	MessagesRelayed     = "messages.relayed"
	CommandsInvalid     = "commands.invalid"
	OnlineUsers         = "presence.online"
)

// Metrics wraps a go-metrics registry.
type Metrics struct {
	reg gometrics.Registry
}

// New returns Metrics backed by a fresh registry.
func New() *Metrics {
	return &Metrics{reg: gometrics.NewRegistry()}
}

// Incr adds i to a counter.
func (m *Metrics) Incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

// Decr subtracts i from a counter.
func (m *Metrics) Decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

// Set updates a gauge.
func (m *Metrics) Set(name string, v int64) {
	gometrics.GetOrRegisterGauge(name, m.reg).Update(v)
}

// Count returns the current value of a counter or gauge, or 0 if it was
// never registered.
func (m *Metrics) Count(name string) int64 {
	switch metric := m.reg.Get(name).(type) {
	case gometrics.Counter:
		return metric.Count()
	case gometrics.Gauge:
		return metric.Value()
	default:
		return 0
	}
}

// Snapshot returns every counter and gauge by name.
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	m.reg.Each(func(name string, i interface{}) {
		switch metric := i.(type) {
		case gometrics.Counter:
			out[name] = metric.Count()
		case gometrics.Gauge:
			out[name] = metric.Value()
		}
	})
	return out
}

// WriteJSON writes the registry once as JSON.
func (m *Metrics) WriteJSON(w io.Writer) {
	gometrics.WriteJSONOnce(m.reg, w)
}

// Report logs a snapshot every tick until ctx is done. A final snapshot is
// logged on the way out.
func (m *Metrics) Report(ctx context.Context, log *slog.Logger, tick time.Duration) {
	if tick <= 0 {
		return
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logOnce(log)
			return
		case <-ticker.C:
			m.logOnce(log)
		}
	}
}

func (m *Metrics) logOnce(log *slog.Logger) {
	attrs := make([]any, 0)
	for name, v := range m.Snapshot() {
		attrs = append(attrs, name, v)
	}
	log.Info("metrics", attrs...)
}
