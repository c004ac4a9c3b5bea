package relay

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	// DefaultPlaceholder is the display name used when none is set.
	DefaultPlaceholder = "anonymous"

	// DefaultTimeFormat formats message timestamps for display.
	DefaultTimeFormat = "15:04:05"
)

// Transport delivers events produced by the Core. Implementations must not
// block and must not call back into the Core.
type Transport interface {
	// Broadcast sends evt to every open connection.
	Broadcast(evt Event)
	// Unicast sends evt to a single connection.
	Unicast(connID string, evt Event)
	// Disconnect closes a connection after its queued events are flushed.
	Disconnect(connID string)
}

// Config holds the Core limits. Zero values mean unlimited participants and
// no history.
type Config struct {
	MaxUsers    int
	MaxHistory  int
	Placeholder string
	TimeFormat  string
	Now         func() time.Time
}

type participant struct {
	name  string
	named bool
}

// Core owns the online set and the history buffer.
type Core struct {
	cfg       Config
	transport Transport
	log       *slog.Logger

	conns   map[string]*participant
	online  map[string]struct{}
	history *history
}

// NewCore creates a Core that sends its events through transport.
func NewCore(cfg Config, transport Transport, log *slog.Logger) *Core {
	if strings.TrimSpace(cfg.Placeholder) == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	// The placeholder is shown as a name, so it is escaped like one.
	cfg.Placeholder = Escape(cfg.Placeholder)
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = DefaultTimeFormat
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxUsers < 0 {
		cfg.MaxUsers = 0
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Core{
		cfg:       cfg,
		transport: transport,
		log:       log,
		conns:     make(map[string]*participant),
		online:    make(map[string]struct{}),
		history:   newHistory(cfg.MaxHistory),
	}
}

// OnConnect admits a new connection. When the online set is full the
// connection receives a capacity notice and is disconnected, and OnConnect
// reports false. Otherwise the connection receives the current history.
func (c *Core) OnConnect(connID string) bool {
	if c.full() {
		c.log.Info("Rejecting connection, chat is full", "conn", connID, "online", len(c.online))
		c.transport.Unicast(connID, capacityEvent())
		c.transport.Disconnect(connID)
		return false
	}

	c.conns[connID] = &participant{}
	c.transport.Unicast(connID, historyEvent(c.history.snapshot()))
	c.log.Debug("Connection admitted", "conn", connID, "history", c.history.len())
	return true
}

// OnSetName binds a display name to the connection and announces the new
// online set to everyone.
func (c *Core) OnSetName(connID, rawName string) {
	p, ok := c.conns[connID]
	if !ok {
		c.log.Debug("Ignoring set-name from unknown connection", "conn", connID)
		return
	}

	name := c.displayName(rawName)
	p.name = name
	p.named = true
	c.online[name] = struct{}{}

	c.log.Info("Participant named", "conn", connID, "name", name, "online", len(c.online))
	c.transport.Broadcast(presenceEvent(c.Online()))
}

// OnMessage relays a chat message from the connection to everyone and
// records it in the history. Blank messages are dropped.
func (c *Core) OnMessage(connID, rawText string) {
	p, ok := c.conns[connID]
	if !ok {
		c.log.Debug("Ignoring message from unknown connection", "conn", connID)
		return
	}
	if strings.TrimSpace(rawText) == "" {
		return
	}

	author := c.cfg.Placeholder
	if p.named {
		author = p.name
	}

	msg := Message{
		Author: author,
		Text:   Escape(rawText),
		Time:   c.cfg.Now().Format(c.cfg.TimeFormat),
	}
	c.history.append(msg)
	c.transport.Broadcast(messageEvent(msg))
}

// OnDisconnect forgets the connection. If it had a name, the name leaves the
// online set and the remaining connections are told.
func (c *Core) OnDisconnect(connID string) {
	p, ok := c.conns[connID]
	if !ok {
		return
	}
	delete(c.conns, connID)

	if !p.named {
		return
	}
	delete(c.online, p.name)

	c.log.Info("Participant left", "conn", connID, "name", p.name, "online", len(c.online))
	c.transport.Broadcast(presenceEvent(c.Online()))
}

// Online returns the current display names in sorted order.
func (c *Core) Online() []string {
	names := lo.Keys(c.online)
	slices.Sort(names)
	return names
}

// History returns a copy of the retained messages, oldest first.
func (c *Core) History() []Message {
	return c.history.snapshot()
}

// Connections reports the number of admitted connections, named or not.
func (c *Core) Connections() int {
	return len(c.conns)
}

func (c *Core) full() bool {
	return c.cfg.MaxUsers > 0 && len(c.online) >= c.cfg.MaxUsers
}

func (c *Core) displayName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return c.cfg.Placeholder
	}
	return Escape(raw)
}
