package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pingpoint/api/services"
	"pingpoint/db"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the HTTP API on top of the domain services.
type Handler struct {
	svc          *services.Services
	orm          *gorm.DB
	log          *slog.Logger
	isProduction bool
}

func New(svc *services.Services, orm *gorm.DB, log *slog.Logger, isProduction bool) *Handler {
	useJSONFieldNames()
	return &Handler{svc: svc, orm: orm, log: log, isProduction: isProduction}
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, h.orm); err != nil {
		h.log.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
