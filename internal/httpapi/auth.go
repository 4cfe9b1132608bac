package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/auth"
	"github.com/muvico/platform/internal/domain/users"
)

func registerAuthRoutes(r *gin.RouterGroup, authed gin.HandlerFunc, logger *zap.Logger, service users.Service, issuer *auth.Issuer) {
	r.POST("/register", func(c *gin.Context) {
		var payload users.RegisterInput
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		user, err := service.Register(c.Request.Context(), payload)
		if err != nil {
			respondServiceError(c, logger, "register", err)
			return
		}

		token, err := issuer.Issue(subject(user))
		if err != nil {
			respondServiceError(c, logger, "issue token", err)
			return
		}

		logger.Info("user registered", zap.String("user_id", user.ID), zap.Bool("admin", user.Admin))
		respondJSON(c, http.StatusCreated, gin.H{"user": user, "token": token})
	})

	r.POST("/login", func(c *gin.Context) {
		var payload struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		user, err := service.Authenticate(c.Request.Context(), payload.Username, payload.Password)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) || errors.Is(err, users.ErrInvalidPassword) {
				respondError(c, http.StatusUnauthorized, "invalid credentials")
				return
			}
			respondServiceError(c, logger, "login", err)
			return
		}

		token, err := issuer.Issue(subject(user))
		if err != nil {
			respondServiceError(c, logger, "issue token", err)
			return
		}

		respondJSON(c, http.StatusOK, gin.H{
			"message": "login successful",
			"user":    user,
			"token":   token,
		})
	})

	r.GET("/me", authed, func(c *gin.Context) {
		respondJSON(c, http.StatusOK, currentUser(c))
	})
}

func subject(u users.User) auth.Subject {
	return auth.Subject{UserID: u.ID, Username: u.Username, Admin: u.Admin}
}
