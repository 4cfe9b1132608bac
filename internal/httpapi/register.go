package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/auth"
	"github.com/muvico/platform/internal/domain"
)

// Options configures route registration.
type Options struct {
	Issuer *auth.Issuer
	// MaxUploadSize caps request bodies on routes that accept files.
	MaxUploadSize int64
	RateLimit     RateLimitConfig
}

// multipartOverhead leaves room for form fields and part headers around the file.
const multipartOverhead = 1 << 20

// Register attaches API routes to the provided router.
func Register(r gin.IRouter, logger *zap.Logger, services domain.Container, opts Options) {
	r.GET("/v1/ping", func(c *gin.Context) {
		respondJSON(c, http.StatusOK, gin.H{
			"status":  "ok",
			"time":    time.Now().UTC().Format(time.RFC3339),
			"server":  "muvico-platform",
			"version": "v1",
		})
	})

	v1 := r.Group("/v1", RateLimit(opts.RateLimit))
	authed := requireAuth(opts.Issuer, services.Users)

	uploadLimit := opts.MaxUploadSize
	if uploadLimit > 0 {
		uploadLimit += multipartOverhead
	}

	registerAuthRoutes(v1.Group("/auth"), authed, logger, services.Users, opts.Issuer)
	registerPresentationRoutes(v1.Group("/presentations", authed), logger, services.Presentations, uploadLimit)
	registerAdminRoutes(v1.Group("/admin", authed, requireAdmin()), logger, services.Users)
}
