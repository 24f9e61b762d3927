package handlers

import (
	"net/http"

	"pingpoint/api/services"

	"github.com/gin-gonic/gin"
)

type locationRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
}

type nearbyQuery struct {
	Latitude  *float64 `form:"lat" binding:"required,latitude"`
	Longitude *float64 `form:"lng" binding:"required,longitude"`
	Radius    *float64 `form:"radius" binding:"omitempty,gt=0"`
	UserID    string   `form:"userId"`
}

type broadcastingRequest struct {
	UserID         string `json:"userId" binding:"required"`
	IsBroadcasting *bool  `json:"is_broadcasting" binding:"required"`
}

type heartbeatRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// UpsertLocation - POST /location
func (h *Handler) UpsertLocation(c *gin.Context) {
	var r locationRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	loc, err := h.svc.Locations.UpsertLocation(c.Request.Context(), r.UserID, *r.Latitude, *r.Longitude)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "location updated", loc)
}

// NearbyLocations - GET /location/nearby?lat=&lng=&radius=
func (h *Handler) NearbyLocations(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	if q.Radius == nil {
		h.fail(c, services.ErrMissingField.With("radius is required"))
		return
	}
	users, err := h.svc.Locations.FindNearbyLocations(c.Request.Context(), *q.Latitude, *q.Longitude, *q.Radius)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "nearby users fetched", users)
}

// SetBroadcasting - POST /status/broadcasting
func (h *Handler) SetBroadcasting(c *gin.Context) {
	var r broadcastingRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	status, err := h.svc.Locations.SetBroadcasting(c.Request.Context(), r.UserID, *r.IsBroadcasting)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Heartbeat - POST /status/heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	var r heartbeatRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	status, err := h.svc.Locations.Heartbeat(c.Request.Context(), r.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetStatus - GET /status/:userId
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.svc.Locations.GetStatus(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
