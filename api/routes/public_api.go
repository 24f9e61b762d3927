package routes

import (
	"pingpoint/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PublicApi mounts the REST API under basePath and returns the group.
func PublicApi(router *gin.Engine, h *handlers.Handler, basePath string) *gin.RouterGroup {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicEndpoints := router.Group(basePath)
	{
		publicEndpoints.POST("profile", h.CreateProfile)
		publicEndpoints.GET("profile/:idOrEmail", h.GetProfile)
		publicEndpoints.PUT("profile/:id", h.UpdateProfile)

		publicEndpoints.POST("location", h.UpsertLocation)
		publicEndpoints.GET("location/nearby", h.NearbyLocations)

		publicEndpoints.POST("status/broadcasting", h.SetBroadcasting)
		publicEndpoints.POST("status/heartbeat", h.Heartbeat)
		publicEndpoints.GET("status/:userId", h.GetStatus)

		publicEndpoints.POST("ping", h.CreatePing)
		publicEndpoints.GET("ping/nearby", h.NearbyPings)
		publicEndpoints.GET("ping/filters", h.PingFilters)

		publicEndpoints.POST("connect", h.Connect)
		publicEndpoints.GET("connections/:userId", h.ListConnections)

		// Проверка навыков
		publicEndpoints.GET("validation/nearby", h.ValidatablePeers)
		publicEndpoints.POST("validation/request", h.RequestValidation)
		publicEndpoints.POST("validation/respond", h.RespondToValidation)
		publicEndpoints.GET("validation/pending/:userId", h.PendingValidations)
		publicEndpoints.GET("validation/summary/:userId", h.ValidationSummary)
	}
	return publicEndpoints
}
