package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"pingpoint/api/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors name fields the way clients send them.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

func statusOf(kind services.Kind) int {
	switch kind {
	case services.KindInvalid:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case services.KindGone:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// bindError turns a gin binding failure into a domain error.
func bindError(err error) *services.Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return services.ErrMissingField.With("%s is required", fe.Field())
		case "latitude", "longitude":
			return services.ErrInvalidCoordinate.With("%s is out of range", fe.Field())
		case "gt":
			return services.ErrInvalidRadius.With("%s must be greater than %s", fe.Field(), fe.Param())
		}
		return services.ErrInvalidRequest.With("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return services.ErrInvalidRequest.With("malformed request: %v", err)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		c.JSON(statusOf(domainErr.Kind), gin.H{"error": domainErr.Code, "details": domainErr.Details})
		return
	}

	h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	details := "internal server error"
	if !h.isProduction {
		details = err.Error()
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "InternalError", "details": details})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.fail(c, bindError(err))
}

func success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"status": "success", "message": message, "data": data})
}
