// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, chat status, metrics, and the built-in test page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-relay/internal/metrics"
)

const statusTimeout = 2 * time.Second

// Handlers serves the GoChat HTTP endpoints for one hub.
type Handlers struct {
	hub      *Hub
	cfg      Config
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandlers creates the HTTP handlers for hub. WebSocket upgrades are
// checked against cfg.AllowedOrigins.
func NewHandlers(hub *Hub, cfg Config, m *metrics.Metrics, log *slog.Logger) *Handlers {
	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Handlers{
		hub:     hub,
		cfg:     cfg,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		log: log,
	}
}

// WebSocket upgrades the HTTP connection, creates a Client, and hands it to
// the hub, which either admits it or rejects it at capacity.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, h.cfg)
	if err := h.hub.Register(client); err != nil {
		h.log.Warn("Dropping connection", "addr", r.RemoteAddr, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat server is running!")
}

// Status reports the online names and buffer sizes as JSON.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	status, err := h.hub.Status(ctx)
	if err != nil {
		http.Error(w, "Status unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Warn("Error writing status response", "error", err)
	}
}

// Metrics dumps the metrics registry as JSON.
func (h *Handlers) Metrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.metrics.WriteJSON(w)
}

// TestPage serves an HTML page that speaks the chat protocol.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}
