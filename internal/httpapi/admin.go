package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/users"
)

func registerAdminRoutes(r *gin.RouterGroup, logger *zap.Logger, service users.Service) {
	r.GET("/users", func(c *gin.Context) {
		offset, limit := 0, 50
		if v := c.Query("offset"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				respondError(c, http.StatusBadRequest, "invalid offset parameter")
				return
			}
			offset = parsed
		}
		if v := c.Query("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				respondError(c, http.StatusBadRequest, "invalid limit parameter")
				return
			}
			limit = parsed
		}

		list, err := service.List(c.Request.Context(), offset, limit)
		if err != nil {
			respondServiceError(c, logger, "list users", err)
			return
		}
		respondJSON(c, http.StatusOK, gin.H{"users": list, "offset": offset, "limit": limit})
	})

	r.PATCH("/users/:id", func(c *gin.Context) {
		var payload struct {
			Admin *bool `json:"admin"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil || payload.Admin == nil {
			respondError(c, http.StatusBadRequest, "admin flag is required")
			return
		}

		user, err := service.SetAdmin(c.Request.Context(), c.Param("id"), *payload.Admin)
		if err != nil {
			respondServiceError(c, logger, "update user", err)
			return
		}
		logger.Info("user admin flag changed",
			zap.String("user_id", user.ID),
			zap.Bool("admin", user.Admin),
			zap.String("by", currentUser(c).ID),
		)
		respondJSON(c, http.StatusOK, user)
	})

	r.DELETE("/users/:id", func(c *gin.Context) {
		if err := service.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondServiceError(c, logger, "delete user", err)
			return
		}
		logger.Info("user deleted", zap.String("user_id", c.Param("id")), zap.String("by", currentUser(c).ID))
		c.Status(http.StatusNoContent)
	})
}
