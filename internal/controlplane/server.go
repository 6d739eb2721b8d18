// Package controlplane serves the local HTTP API used by front ends to edit the
// cellar, trigger syncs and follow sync status.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cellarsync/cellarsync/internal/controlplane/handlers"
	"github.com/cellarsync/cellarsync/internal/controlplane/middleware"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
	"github.com/cellarsync/cellarsync/internal/utils"
)

type Config struct {
	Addr      string
	AuthToken string
}

type Server struct {
	config *Config
	server *http.Server
}

func NewServer(config *Config, mgr *syncmgr.Manager, bottles handlers.BottleStore) *Server {
	routes := SetupRoutes(mgr, bottles, &RouteConfig{
		Auth: middleware.TokenAuthConfig{Token: config.AuthToken},
	})

	return &Server{
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           routes,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			// no WriteTimeout: /v1/sync/events is a long-lived stream
		},
	}
}

// Start serves until Stop is called. It returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("control plane start", "addr", "http://"+ln.Addr().String(), "token", utils.MaskSecret(s.config.AuthToken))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
