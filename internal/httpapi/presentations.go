package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/domain/presentations"
)

func registerPresentationRoutes(r *gin.RouterGroup, logger *zap.Logger, service presentations.Service, uploadLimit int64) {
	r.GET("", func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			userID = currentUser(c).ID
		}
		list, err := service.ListForUser(c.Request.Context(), actor(c), userID)
		if err != nil {
			respondServiceError(c, logger, "list presentations", err)
			return
		}
		respondJSON(c, http.StatusOK, gin.H{"presentations": list})
	})

	r.POST("", func(c *gin.Context) {
		var payload presentations.CreateInput
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		p, err := service.Create(c.Request.Context(), actor(c), payload)
		if err != nil {
			respondServiceError(c, logger, "create presentation", err)
			return
		}
		logger.Info("presentation created", zap.String("presentation_id", p.ID), zap.String("user_id", p.UserID))
		respondJSON(c, http.StatusCreated, p)
	})

	r.GET("/:id", func(c *gin.Context) {
		p, err := service.Get(c.Request.Context(), actor(c), c.Param("id"))
		if err != nil {
			respondServiceError(c, logger, "get presentation", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	r.PATCH("/:id", func(c *gin.Context) {
		var payload presentations.PresentationUpdate
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		p, err := service.Update(c.Request.Context(), actor(c), c.Param("id"), payload)
		if err != nil {
			respondServiceError(c, logger, "update presentation", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	r.DELETE("/:id", func(c *gin.Context) {
		if err := service.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
			respondServiceError(c, logger, "delete presentation", err)
			return
		}
		logger.Info("presentation deleted", zap.String("presentation_id", c.Param("id")), zap.String("user_id", currentUser(c).ID))
		c.Status(http.StatusNoContent)
	})

	r.POST("/:id/indexes/:index", func(c *gin.Context) {
		at, ok := indexParam(c)
		if !ok {
			return
		}
		p, err := service.InsertIndex(c.Request.Context(), actor(c), c.Param("id"), at)
		if err != nil {
			respondServiceError(c, logger, "insert index", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	r.DELETE("/:id/indexes/:index", func(c *gin.Context) {
		at, ok := indexParam(c)
		if !ok {
			return
		}
		p, err := service.RemoveIndex(c.Request.Context(), actor(c), c.Param("id"), at)
		if err != nil {
			respondServiceError(c, logger, "remove index", err)
			return
		}
		respondJSON(c, http.StatusOK, p)
	})

	registerCueRoutes(r, logger, service, uploadLimit)
}

func indexParam(c *gin.Context) (int, bool) {
	at, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return at, true
}
