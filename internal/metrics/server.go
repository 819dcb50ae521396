package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthPath        = "/health"
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

// Server exposes the default Prometheus registry and a health endpoint.
type Server struct {
	cfg    *config.MetricsConfig
	log    *logger.Logger
	server *http.Server
	addr   net.Addr
}

func NewServer(cfg *config.MetricsConfig, log *logger.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// Start binds the listen address and serves in the background.
// Binding errors are returned, nothing is started when metrics are disabled.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return nil
	}

	listener, err := new(net.ListenConfig).Listen(ctx, "tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.addr = listener.Addr()

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog: zapErrorLog{s.log},
	}))
	mux.HandleFunc(healthPath, serveHealth)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("metrics server stopped", "address", s.addr.String(), "error", err)
		}
	}()

	s.log.Infow("metrics server listening", "address", s.addr.String(), "path", s.cfg.Path)

	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}

	return nil
}

// serveHealth answers 503 while any component reports itself unhealthy.
func serveHealth(w http.ResponseWriter, _ *http.Request) {
	components := Health()

	status := http.StatusOK
	for _, healthy := range components {
		if !healthy {
			status = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"healthy": status == http.StatusOK, "components": components})
}

type zapErrorLog struct {
	log *logger.Logger
}

func (z zapErrorLog) Println(v ...any) {
	z.log.Error(v...)
}
