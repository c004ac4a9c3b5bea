// Package server coordinates client registration, event dispatch to the
// presence core, and connection cleanup for the GoChat WebSocket system via
// the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-relay/internal/metrics"
	"github.com/Tyrowin/gochat-relay/internal/relay"
)

// Hub owns every WebSocket client and the presence core. Run is the only
// goroutine that touches the core, so transport events are applied one at a
// time in arrival order. The Hub is also the core's relay.Transport.
type Hub struct {
	clients map[string]*Client
	core    *relay.Core
	metrics *metrics.Metrics
	log     *slog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan inbound
	status     chan chan Status

	// dropped holds clients detached while handling the current event whose
	// core state has not been cleared yet.
	dropped []*Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub with a fresh presence core built from cfg. The
// returned Hub is ready to manage WebSocket connections once Run is started.
func NewHub(cfg relay.Config, m *metrics.Metrics, log *slog.Logger) *Hub {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		metrics:    m,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan inbound),
		status:     make(chan chan Status),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.core = relay.NewCore(cfg, h, log)
	return h
}

// Register hands a new client to the hub loop, which admits it or rejects it
// at capacity and starts its pumps.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Status asks the hub loop for a snapshot of the chat state.
func (h *Hub) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case h.status <- reply:
	case <-h.done:
		return Status{}, ErrHubClosed
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// ClientCount returns the number of open WebSocket connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration,
// commands, and unregistration. This method should be called in a separate
// goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.commands:
			h.handleCommand(in)

		case reply := <-h.status:
			reply <- Status{
				Online:      h.core.Online(),
				Connections: h.core.Connections(),
				History:     len(h.core.History()),
			}
		}

		h.flushDropped()
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.log.Warn("Received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.metrics.Incr(metrics.ConnectionsOpen, 1)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	if !h.core.OnConnect(client.id) {
		h.metrics.Incr(metrics.ConnectionsRejected, 1)
		return
	}
	h.metrics.Incr(metrics.ConnectionsAccepted, 1)
	client.log.Info("Client registered", "clients", clientCount)
}

func (h *Hub) handleUnregister(client *Client) {
	if client == nil {
		return
	}
	if h.detach(client, websocket.CloseNormalClosure, "") {
		client.log.Info("Client unregistered", "clients", h.ClientCount())
	}
}

func (h *Hub) handleCommand(in inbound) {
	if current, ok := h.clients[in.client.id]; !ok || current != in.client {
		return
	}

	switch in.command.Type {
	case relay.CommandSetName:
		h.core.OnSetName(in.client.id, in.command.Name)
	case relay.CommandSendMessage:
		h.core.OnMessage(in.client.id, in.command.Text)
	default:
		h.metrics.Incr(metrics.CommandsInvalid, 1)
		in.client.log.Warn("Unknown command type", "type", in.command.Type)
	}
}

// submit offers a decoded command to the hub loop. It reports false once
// the hub has stopped.
func (h *Hub) submit(in inbound) bool {
	select {
	case h.commands <- in:
		return true
	case <-h.done:
		return false
	}
}

// leave tells the hub loop that a client's read side has ended.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast implements relay.Transport.
func (h *Hub) Broadcast(evt relay.Event) {
	payload, ok := h.encode(evt)
	if !ok {
		return
	}

	switch evt.Type {
	case relay.EventMessage:
		h.metrics.Incr(metrics.MessagesRelayed, 1)
	case relay.EventPresenceUpdate:
		h.metrics.Set(metrics.OnlineUsers, int64(len(evt.Users)))
	}

	h.log.Debug("Broadcasting event", "type", evt.Type, "clients", len(h.clients))
	for _, client := range h.clients {
		h.deliver(client, payload)
	}
}

// Unicast implements relay.Transport.
func (h *Hub) Unicast(connID string, evt relay.Event) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if payload, ok := h.encode(evt); ok {
		h.deliver(client, payload)
	}
}

// Disconnect implements relay.Transport. Queued events are flushed before
// the close frame, which carries the capacity notice as its reason.
func (h *Hub) Disconnect(connID string) {
	if client, ok := h.clients[connID]; ok {
		h.detach(client, websocket.CloseTryAgainLater, relay.CapacityNotice)
	}
}

func (h *Hub) encode(evt relay.Event) ([]byte, bool) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("Error encoding event", "type", evt.Type, "error", err)
		return nil, false
	}
	return payload, true
}

// deliver queues payload without blocking. A client whose queue is full is
// dropped.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		client.log.Warn("Client removed due to full send buffer")
		h.metrics.Incr(metrics.ConnectionsDropped, 1)
		h.detach(client, websocket.ClosePolicyViolation, "send buffer full")
	}
}

// detach removes a client from the hub and closes its send queue so the
// write pump can say goodbye. It reports whether the client was attached.
func (h *Hub) detach(client *Client, code int, reason string) bool {
	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	h.mutex.Unlock()
	if !ok || current != client {
		return false
	}

	client.closeCode = code
	client.closeReason = reason
	close(client.send)
	h.metrics.Decr(metrics.ConnectionsOpen, 1)
	h.dropped = append(h.dropped, client)
	return true
}

// flushDropped clears core state for detached clients. Presence updates it
// triggers may detach more clients, which are handled in the same pass.
func (h *Hub) flushDropped() {
	for len(h.dropped) > 0 {
		client := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.core.OnDisconnect(client.id)
	}
	h.dropped = nil
}

// shutdownClients closes every client with a going-away frame. The core is
// left alone since the process is exiting.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		h.detach(client, websocket.CloseGoingAway, "server shutting down")
	}
	h.dropped = nil

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
