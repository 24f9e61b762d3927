package handlers

import (
	"errors"
	"net/http"

	"pingpoint/api/middleware"
	"pingpoint/api/services"

	"github.com/gin-gonic/gin"
)

type validationRequest struct {
	FromUserID   string `json:"fromUserId" binding:"required"`
	ToUserID     string `json:"toUserId" binding:"required"`
	Category     string `json:"category" binding:"required"`
	SpecificItem string `json:"specificItem" binding:"required"`
}

type respondRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	Response  string `json:"response" binding:"required"`
}

// ValidatablePeers - GET /validation/nearby?userId=
func (h *Handler) ValidatablePeers(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.fail(c, services.ErrMissingField.With("userId is required"))
		return
	}
	peers, err := h.svc.Validations.ListValidatable(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, peers)
}

// RequestValidation - POST /validation/request
func (h *Handler) RequestValidation(c *gin.Context) {
	var r validationRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	req, err := h.svc.Validations.RequestValidation(c.Request.Context(), services.RequestValidationInput{
		FromUserID:   r.FromUserID,
		ToUserID:     r.ToUserID,
		Category:     r.Category,
		SpecificItem: r.SpecificItem,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	middleware.RecordValidationTransition("none", string(req.Status))
	c.JSON(http.StatusCreated, gin.H{
		"requestId": req.ID,
		"createdAt": req.CreatedAt,
		"message":   "validation request sent",
	})
}

// RespondToValidation - POST /validation/respond
func (h *Handler) RespondToValidation(c *gin.Context) {
	var r respondRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		h.badRequest(c, err)
		return
	}
	tr, err := h.svc.Validations.RespondToValidation(c.Request.Context(), r.RequestID, r.Response)
	if tr != nil {
		middleware.RecordValidationTransition(string(tr.From), string(tr.To))
	}
	if err != nil {
		if errors.Is(err, services.ErrRequestExpired) {
			h.log.Info("validation request expired on response", "requestId", r.RequestID)
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "validation " + string(tr.To)})
}

// PendingValidations - GET /validation/pending/:userId
func (h *Handler) PendingValidations(c *gin.Context) {
	pending, err := h.svc.Validations.ListPending(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

// ValidationSummary - GET /validation/summary/:userId
func (h *Handler) ValidationSummary(c *gin.Context) {
	summary, err := h.svc.Validations.Summarize(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
