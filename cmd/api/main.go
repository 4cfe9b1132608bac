package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/app"
	"github.com/muvico/platform/internal/auth"
	"github.com/muvico/platform/internal/config"
	"github.com/muvico/platform/internal/httpapi"
	"github.com/muvico/platform/internal/logger"
	"github.com/muvico/platform/internal/metrics"
	"github.com/muvico/platform/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logr := logger.New(cfg.Env)
	defer func() { _ = logr.Sync() }()

	m := metrics.New(nil)

	baseCtx := context.Background()
	application, err := app.New(baseCtx, cfg, logr, app.Options{Migrate: true, Observer: m})
	if err != nil {
		logr.Fatal("failed to init application", zap.Error(err))
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logr.Error("error closing resources", zap.Error(cerr))
		}
	}()

	srv := server.New(cfg, logr, m.Middleware())
	if application.DB != nil {
		srv.AddHealthCheck("database", application.DB.PingContext)
	}
	if application.Cache != nil {
		srv.AddHealthCheck("redis", application.Cache.Ping)
	}

	engine := srv.Engine()
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	httpapi.Register(engine, logr, application.Domain, httpapi.Options{
		Issuer:        auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		MaxUploadSize: cfg.MaxFileSize,
		RateLimit: httpapi.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logr.Error("server error", zap.Error(err))
		}
		return
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
