package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config contains the configuration for the control API server.
type Config struct {
	Addr      string // address to bind
	AuthToken string // empty disables auth
}

// Server is the local HTTP server carrying the control API.
type Server struct {
	config *Config
	server *http.Server
}

func NewServer(config *Config, api *API) *Server {
	routes := SetupRoutes(api, &RouteConfig{
		Auth: TokenAuthConfig{Token: config.AuthToken},
	})

	httpServer := &http.Server{
		Addr:    config.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE endpoint holds the response open
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	return &Server{
		config: config,
		server: httpServer,
	}
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("control api start", "addr", fmt.Sprintf("http://%s", s.config.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control api: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control api stop")
	return s.server.Shutdown(ctx)
}
