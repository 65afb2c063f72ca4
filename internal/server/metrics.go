package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/agentleads/internal/instrumentation"
)

const (
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds draining the metrics server and
	// flushing telemetry on exit.
	DefaultShutdownTimeout = 10 * time.Second

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr. Port 0 picks a free port.
	Addr string

	// InstrumentationProvider must be enabled and use the prometheus
	// metrics exporter.
	InstrumentationProvider *instrumentation.Provider

	// Health adds /healthz, /readyz and /healthz/detailed. Without it only
	// a plain /healthz is served.
	Health *HealthChecker

	Logger *slog.Logger
}

// MetricsServer serves /metrics and the health endpoints next to a CLI run
// or the MCP stdio server.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	addr   string
	logger *slog.Logger
}

func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	p := config.InstrumentationProvider
	switch {
	case p == nil:
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	case !p.Enabled():
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	case p.PrometheusHandler() == nil:
		return nil, fmt.Errorf("metrics server requires the %s metrics exporter", instrumentation.ExporterPrometheus)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", p.PrometheusHandler())
	if config.Health != nil {
		config.Health.RegisterHealthEndpoints(mux)
	} else {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
	}

	addr := config.Addr
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
			WriteTimeout:      metricsWriteTimeout,
			IdleTimeout:       metricsIdleTimeout,
		},
		addr:   addr,
		logger: logger,
	}, nil
}

// Listen binds the address. Addr reports the bound address afterwards.
func (s *MetricsServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	return nil
}

// Serve blocks until Shutdown. It returns nil after a shutdown.
func (s *MetricsServer) Serve() error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("serving metrics", "addr", s.addr)
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start binds and serves in the background. Serve errors after a
// successful bind are logged.
func (s *MetricsServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown drains open connections. It is a no-op before Listen.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.srv.Shutdown(ctx)
}

func (s *MetricsServer) Addr() string {
	return s.addr
}
