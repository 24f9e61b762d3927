package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectRequest struct {
	FromUser string `json:"fromUser" binding:"required"`
	ToUser   string `json:"toUser" binding:"required"`
}

// Connect - POST /connect
func (h *Handler) Connect(c *gin.Context) {
	var r connectRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	created, err := h.svc.Connections.Connect(c.Request.Context(), r.FromUser, r.ToUser)
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "connected"
	if !created {
		message = "already connected"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": message})
}

// ListConnections - GET /connections/:userId
func (h *Handler) ListConnections(c *gin.Context) {
	peers, err := h.svc.Connections.ListConnections(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, peers)
}
