package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/auth"
	"github.com/muvico/platform/internal/config"
	"github.com/muvico/platform/internal/domain"
	"github.com/muvico/platform/internal/httpapi"
	"github.com/muvico/platform/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(config.Config{Env: "test", HTTPPort: 0, CORSOrigins: []string{"*"}}, zap.NewNop())
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthWithoutChecks(t *testing.T) {
	s := newTestServer(t)
	rec := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealthReportsFailingCheck(t *testing.T) {
	s := newTestServer(t)
	s.AddHealthCheck("database", func(context.Context) error { return nil })
	s.AddHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec := get(s, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "unavailable"}, body.Checks)
}

func TestExtraMiddlewareRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	s := New(config.Config{Env: "test"}, zap.NewNop(), func(c *gin.Context) {
		c.Next()
		seen = c.FullPath()
	})
	s.Engine().GET("/hello", func(c *gin.Context) { c.String(http.StatusOK, "hi") })

	rec := get(s, "/hello")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/hello", seen)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://show.example")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func loginCodes(s *Server, remoteAddr string, forwarded []string) []int {
	codes := make([]int, 0, len(forwarded))
	for _, xff := range forwarded {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"username":"nobody","password":"whatever1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		s.Engine().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}

func newLimitedServer(t *testing.T, trusted []string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New(config.Config{Env: "test", TrustedProxies: trusted}, zap.NewNop())
	container := domain.New(domain.Options{UserRepo: memory.NewUserRepository(), Logger: zap.NewNop()})
	httpapi.Register(s.Engine(), zap.NewNop(), container, httpapi.Options{
		Issuer:    auth.NewIssuer("test-secret", 0),
		RateLimit: httpapi.RateLimitConfig{RPS: 1, Burst: 1},
	})
	return s
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	s := newLimitedServer(t, nil)

	codes := loginCodes(s, "203.0.113.9:4321", []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"})
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	s := newLimitedServer(t, []string{"10.0.0.0/8"})

	codes := loginCodes(s, "10.1.2.3:4321", []string{"198.51.100.1", "198.51.100.2", "198.51.100.1"})
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
