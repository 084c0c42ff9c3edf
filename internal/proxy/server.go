package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/fieldremap/internal/health"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions
var ginModeOnce sync.Once

// Default endpoint paths.
const (
	DefaultHealthPath = "/healthz"
	DefaultReadyPath  = "/readyz"
)

// ServerConfig holds configuration for the proxy server.
type ServerConfig struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestIDHeader string
	HealthPath      string
	ReadyPath       string
	MetricsPath     string
	ServiceName     string
}

func (c *ServerConfig) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.RequestIDHeader == "" {
		c.RequestIDHeader = "X-Request-ID"
	}
	if c.HealthPath == "" {
		c.HealthPath = DefaultHealthPath
	}
	if c.ReadyPath == "" {
		c.ReadyPath = DefaultReadyPath
	}
	if c.ServiceName == "" {
		c.ServiceName = "fieldremap"
	}
}

// Server serves the proxy and its operational endpoints.
type Server struct {
	engine         *gin.Engine
	config         ServerConfig
	logger         observability.Logger
	checker        *health.Checker
	metrics        *ServerMetrics
	metricsHandler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthChecker sets the checker behind the health endpoints.
func WithHealthChecker(checker *health.Checker) ServerOption {
	return func(s *Server) {
		if checker != nil {
			s.checker = checker
		}
	}
}

// WithServerMetrics enables request metrics.
func WithServerMetrics(m *ServerMetrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler exposes h at the configured metrics path.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// NewServer creates a server that sends every request not claimed by an
// operational endpoint to upstream.
func NewServer(cfg ServerConfig, upstream http.Handler, opts ...ServerOption) *Server {
	cfg.setDefaults()

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:  gin.New(),
		config:  cfg,
		logger:  observability.NopLogger(),
		checker: health.NewChecker(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	skip := []string{cfg.HealthPath, cfg.ReadyPath}
	if s.metricsHandler != nil && cfg.MetricsPath != "" {
		skip = append(skip, cfg.MetricsPath)
	}

	s.engine.Use(
		RequestID(cfg.RequestIDHeader),
		Tracing(cfg.ServiceName),
		Metrics(s.metrics),
		Logging(s.logger, skip...),
		Recovery(s.logger),
	)

	s.engine.GET(cfg.HealthPath, s.checker.HealthHandler())
	s.engine.GET(cfg.ReadyPath, s.checker.ReadinessHandler())
	if s.metricsHandler != nil && cfg.MetricsPath != "" {
		s.engine.GET(cfg.MetricsPath, gin.WrapH(s.metricsHandler))
	}
	s.engine.NoRoute(gin.WrapH(upstream))

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a graceful
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerRunning
	}
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	s.listener = ln
	s.running = true
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.Duration("read_timeout", s.config.ReadTimeout),
		observability.Duration("write_timeout", s.config.WriteTimeout),
	)

	err := srv.Serve(ln)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the listening address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
