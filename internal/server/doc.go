// Package server implements the HTTP and WebSocket hosting for GoChat.
//
// The Hub adapts gorilla/websocket connections to the presence core in
// internal/relay: it runs the single event loop that feeds connects,
// commands, and disconnects to the core, and it delivers the core's events
// back to the clients. Configuration, routing, and HTTP server helpers live
// in their own files.
package server
