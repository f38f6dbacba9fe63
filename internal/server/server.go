// Package server constructs the room chat service from its configuration and
// drives its lifecycle.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Server owns the room registry, the coordinator, the sweeper and the hub for
// a single process. Nothing here is global; every piece hangs off the Server.
type Server struct {
	cfg        *Config
	store      *room.Store
	coord      *room.Coordinator
	hub        *Hub
	sweeper    *room.Sweeper
	origins    *originPolicy
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New builds a Server from cfg. Passing nil uses defaults.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.Sanitize()

	store := room.NewStore(cfg.RoomLifetime)
	coord := room.NewCoordinator(store)
	hub := NewHub(coord)
	origins := newOriginPolicy(cfg.AllowedOrigins)

	s := &Server{
		cfg:     cfg,
		store:   store,
		coord:   coord,
		hub:     hub,
		sweeper: room.NewSweeper(store, cfg.SweepInterval, hub.CloseRooms).Through(hub.Exclusive),
		origins: origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Hub returns the session gateway.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Store returns the room registry.
func (s *Server) Store() *room.Store {
	return s.store
}

// Sweeper returns the expiration sweeper.
func (s *Server) Sweeper() *room.Sweeper {
	return s.sweeper
}

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Start launches the hub loop and the sweeper. It must be called before the
// HTTP server accepts connections.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run()
	log.Println("Hub started and ready to manage WebSocket connections")
	s.sweeper.Start(ctx)
}

// ListenAndServe serves HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Printf("Server running on port %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, stops the sweeper and drains the hub
// within the configured timeout.
func (s *Server) Shutdown() error {
	log.Println("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	httpErr := s.httpServer.Shutdown(ctx)
	if httpErr != nil {
		log.Printf("HTTP server shutdown error: %v", httpErr)
	}
	s.sweeper.Stop()
	hubErr := s.hub.Shutdown(s.cfg.ShutdownTimeout)
	return errors.Join(httpErr, hubErr)
}
