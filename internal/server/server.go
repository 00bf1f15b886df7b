package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/HerbHall/wolgate/internal/registry"
	"github.com/HerbHall/wolgate/internal/version"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

const healthTimeout = 5 * time.Second

// Server is the main wolgate HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	mux        *http.ServeMux
	maxConns   int
}

// New creates a new Server instance. A nil gatherer disables /metrics.
func New(addr string, reg *registry.Registry, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		// No WriteTimeout: event stream connections are long-lived.
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		registry: reg,
		gatherer: gatherer,
		logger:   logger,
		mux:      mux,
	}

	s.registerCoreRoutes()
	s.mountPluginRoutes()

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// mountPluginRoutes registers all plugin routes under /api/v1/{plugin}/.
func (s *Server) mountPluginRoutes() {
	allRoutes := s.registry.AllRoutes()
	for pluginName, routes := range allRoutes {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// SetMaxConnections caps simultaneously accepted connections. Zero or less
// means unlimited. Must be called before Start.
func (s *Server) SetMaxConnections(n int) {
	s.maxConns = n
}

// Start listens on the configured address and serves HTTP requests.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves HTTP requests on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.logger.Info("starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.maxConns),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports server health aggregated over plugin health checks.
// Any unhealthy plugin makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	overall := plugin.StatusHealthy
	checks := make(map[string]plugin.HealthStatus)
	for _, p := range s.registry.All() {
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			continue
		}
		st := hc.Health(ctx)
		checks[p.Info().Name] = st
		switch {
		case st.Status == plugin.StatusUnhealthy:
			overall = plugin.StatusUnhealthy
		case st.Status == plugin.StatusDegraded && overall == plugin.StatusHealthy:
			overall = plugin.StatusDegraded
		}
	}

	code := http.StatusOK
	if overall == plugin.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Wolgate-Version", version.Short())
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  overall,
		"service": "wolgate",
		"version": version.Map(),
		"plugins": checks,
	})
}

// handlePlugins returns the list of registered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.registry.All()
	type pluginResponse struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		APIVersion  int    `json:"api_version"`
	}
	info := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		pi := p.Info()
		info = append(info, pluginResponse{
			Name:        pi.Name,
			Version:     pi.Version,
			Description: pi.Description,
			APIVersion:  pi.APIVersion,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Wolgate-Version", version.Short())
	_ = json.NewEncoder(w).Encode(info)
}
