package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packetloom/tracecore/internal/config"
	"github.com/packetloom/tracecore/internal/pluginapi"
)

// Server is the HTTP server exposing the Prometheus handler.
type Server struct {
	addr   string
	path   string
	logger pluginapi.Logger
	server *http.Server
}

// NewServer constructs a metrics Server. path defaults to "/metrics" when
// empty.
func NewServer(addr, path string, logger pluginapi.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path, logger: logger}
}

// Start launches the HTTP listener in the background and returns once it
// is ready to accept connections.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("metrics: serving %s on %s", s.path, s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics: server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: server shutdown failed: %w", err)
	}
	return nil
}

// Serve starts the metrics endpoint if cfg.Enabled, returning the Server
// so the caller can Stop it during shutdown. It returns a nil Server when
// metrics are disabled.
func Serve(ctx context.Context, cfg config.MetricsConfig, logger pluginapi.Logger) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	srv := NewServer(cfg.Listen, cfg.Path, logger)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
