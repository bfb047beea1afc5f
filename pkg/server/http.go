package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kumarabd/gokit/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
)

// Config contains configuration for the HTTP server.
type Config struct {
	Host         string        `json:"host" yaml:"host" default:"0.0.0.0"`
	Port         string        `json:"port" yaml:"port" default:"9090"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"60s"`
}

// Pinger is a process dependency that can report liveness for the health
// endpoint.
type Pinger interface {
	Ping() (bool, error)
}

// HTTP exposes the metrics and health endpoints.
type HTTP struct {
	handler   *gin.Engine
	log       *logger.Handler
	metric    *metrics.Handler
	config    *Config
	deps      []Pinger
	server    *http.Server
	isRunning bool
	mu        sync.RWMutex
}

// NewHTTP creates a new HTTP server instance. Any given dependencies are
// pinged by the health endpoint.
func NewHTTP(config *Config, l *logger.Handler, m *metrics.Handler, deps ...Pinger) *HTTP {
	gin.SetMode(gin.ReleaseMode)

	server := &HTTP{
		handler: gin.New(),
		log:     l,
		metric:  m,
		config:  config,
		deps:    deps,
	}

	server.handler.Use(gin.Recovery())
	server.handler.Use(server.loggingMiddleware())
	server.setupRoutes()

	return server
}

// setupRoutes registers the observability endpoints.
func (s *HTTP) setupRoutes() {
	s.handler.GET("/healthz", func(c *gin.Context) {
		for _, dep := range s.deps {
			if ok, err := dep.Ping(); err != nil || !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.handler.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// loggingMiddleware logs each request with latency and status.
func (s *HTTP) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *HTTP) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("HTTP server is already running")
	}

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	s.log.Info().Msgf("Starting HTTP server on %s", addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *HTTP) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning || s.server == nil {
		return nil
	}
	s.isRunning = false
	return s.server.Shutdown(ctx)
}

// Handler exposes the gin engine for tests.
func (s *HTTP) Handler() http.Handler {
	return s.handler
}
