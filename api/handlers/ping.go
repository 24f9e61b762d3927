package handlers

import (
	"net/http"

	"pingpoint/api/middleware"
	"pingpoint/api/services"

	"github.com/gin-gonic/gin"
)

type pingRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Message   string   `json:"message" binding:"required"`
	Mood      string   `json:"mood" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
	Category  *string  `json:"category"`
	Value     *string  `json:"value"`
}

// CreatePing - POST /ping
func (h *Handler) CreatePing(c *gin.Context) {
	var r pingRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	ping, err := h.svc.Pings.CreatePing(c.Request.Context(), services.CreatePingInput{
		UserID:    r.UserID,
		Message:   r.Message,
		Mood:      r.Mood,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Category:  r.Category,
		Value:     r.Value,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	category := "none"
	if ping.Category != nil {
		category = string(*ping.Category)
	}
	middleware.RecordPingCreated(category)
	success(c, http.StatusCreated, "ping created", ping)
}

// NearbyPings - GET /ping/nearby?lat=&lng=&radius=&userId=
func (h *Handler) NearbyPings(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	pings, err := h.svc.Pings.FindNearbyPings(c.Request.Context(), services.NearbyPingsQuery{
		Latitude:    *q.Latitude,
		Longitude:   *q.Longitude,
		RadiusKm:    q.Radius,
		RequesterID: q.UserID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "nearby pings fetched", pings)
}

// PingFilters - GET /ping/filters
func (h *Handler) PingFilters(c *gin.Context) {
	options, err := h.svc.Pings.ListFilterOptions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "filter options fetched", options)
}
