// Package server wires HTTP handlers into a ServeMux wrapped by the CORS
// policy.
package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes configures the application routes and wraps them in a CORS
// handler that follows the configured origins.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/rooms", s.RoomsHandler)
	mux.HandleFunc("/test", TestPageHandler)

	return cors.New(cors.Options{
		AllowedOrigins: s.origins.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(mux)
}
