package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/delivery-relay/internal/config"
)

// Server wraps the HTTP server for the relay.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
}

// NewServer builds the router and the HTTP server around it.
func NewServer(cfg config.ServerConfig, h *Handlers, hc *HealthChecker, adminToken string) *Server {
	router := SetupRoutes(h, hc, adminToken)
	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.GetHost(), cfg.Port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			// File sends to Telegram can hold the webhook response open.
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  90 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts serving. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
