package handlers

import (
	"net/http"

	"pingpoint/api/services"

	"github.com/gin-gonic/gin"
)

type createProfileRequest struct {
	Email        string                      `json:"email" binding:"required,email"`
	Name         *string                     `json:"name"`
	Items        []services.ProfileItemInput `json:"items"`
	ProfileImage *string                     `json:"profileImage"`
}

type updateProfileRequest struct {
	Name         *string                      `json:"name"`
	Email        *string                      `json:"email" binding:"omitempty,email"`
	Items        *[]services.ProfileItemInput `json:"items"`
	MoodBadges   *[]services.MoodBadgeInput   `json:"moodBadges"`
	ProfileImage *string                      `json:"profileImage"`
}

// CreateProfile - POST /profile
func (h *Handler) CreateProfile(c *gin.Context) {
	var r createProfileRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	profile, err := h.svc.Profiles.CreateProfile(c.Request.Context(), services.CreateProfileInput{
		Email:        r.Email,
		Name:         r.Name,
		Items:        r.Items,
		ProfileImage: r.ProfileImage,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusCreated, "profile created", profile)
}

// GetProfile - GET /profile/:idOrEmail
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.svc.Profiles.GetProfile(c.Request.Context(), c.Param("idOrEmail"))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "profile fetched", profile)
}

// UpdateProfile - PUT /profile/:id
func (h *Handler) UpdateProfile(c *gin.Context) {
	var r updateProfileRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	profile, err := h.svc.Profiles.UpdateProfile(c.Request.Context(), c.Param("id"), services.UpdateProfileInput{
		Name:         r.Name,
		Email:        r.Email,
		Items:        r.Items,
		MoodBadges:   r.MoodBadges,
		ProfileImage: r.ProfileImage,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, http.StatusOK, "profile updated", profile)
}
