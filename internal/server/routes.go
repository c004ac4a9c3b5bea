// Package server wires HTTP handlers into a gorilla/mux router for the GoChat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all application routes:
// the WebSocket endpoint, health check, status, metrics, and test page.
func SetupRoutes(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.WebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/test", h.TestPage).Methods(http.MethodGet)
	r.HandleFunc("/", h.Health)
	return r
}
