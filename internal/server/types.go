// Package server defines shared message payload types and utility helpers that
// are reused across client and hub logic.
package server

import (
	"errors"
	"strings"

	"github.com/Tyrowin/gochat-relay/internal/relay"
)

// ErrHubClosed is returned when an event is offered to a hub that has shut down.
var ErrHubClosed = errors.New("hub closed")

// inbound is a decoded client command waiting for the hub loop.
type inbound struct {
	client  *Client
	command relay.Command
}

// Status is a point-in-time view of the chat state.
type Status struct {
	Online      []string `json:"online"`
	Connections int      `json:"connections"`
	History     int      `json:"history"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
