package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/config"
	"github.com/muvico/platform/internal/httpapi"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// Server wraps the HTTP server and related dependencies.
type Server struct {
	cfg    config.Config
	logger *zap.Logger
	server *http.Server
	engine *gin.Engine

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// New constructs a server with base routes and middleware wiring. Extra
// middleware runs after request id, recovery and logging.
func New(cfg config.Config, logger *zap.Logger, middleware ...gin.HandlerFunc) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	// Client IPs come from X-Forwarded-For only when the peer is a listed proxy.
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("invalid TRUSTED_PROXIES, trusting none", zap.Strings("proxies", cfg.TrustedProxies), zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(
		httpapi.RequestID(),
		httpapi.Recovery(logger),
		httpapi.RequestLogger(logger),
		httpapi.CORS(cfg.CORSOrigins),
	)
	engine.Use(middleware...)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		checks: make(map[string]HealthCheck),
	}
	engine.GET("/healthz", s.health)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// AddHealthCheck registers a dependency probed by /healthz.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) health(c *gin.Context) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}

// Run starts the HTTP server and blocks until it exits or errors.
func (s *Server) Run() error {
	s.logger.Info("api server listening", zap.String("addr", s.server.Addr), zap.String("env", s.cfg.Env))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the provided context timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Engine exposes the router for route registration by other packages.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
