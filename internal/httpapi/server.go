package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/concordhq/concord/internal/observability"
)

// Server wraps the HTTP listener lifecycle with separate start/stop
// phases so callers can bind a listener before serving begins.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *observability.Logger
}

// NewServer builds a Server bound to addr, serving the router built from
// deps.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start binds the listener and begins serving in the background. It
// returns once the listener is bound, not once the server stops.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error(ctx, "http server error", "error", err)
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
	}
	return nil
}

// Stop gracefully shuts the server down, bounded by ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
