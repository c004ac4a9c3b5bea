// Package relay implements the presence and message-relay core of the chat
// server.
//
// The Core tracks which display names are online, relays sanitized chat
// messages to every connection, and keeps a bounded history that is replayed
// to each new connection. It never talks to the network directly: every
// outbound event goes through a Transport supplied by the hosting server.
//
// A Core is not safe for concurrent use. The hosting server must call its
// methods from a single goroutine, in the order events arrive.
package relay
