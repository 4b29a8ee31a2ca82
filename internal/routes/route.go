package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventflow/internal/container"
	"github.com/joshua-takyi/eventflow/internal/handlers"
	"github.com/joshua-takyi/eventflow/internal/middleware"
	"github.com/joshua-takyi/eventflow/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	secure := c.Config.IsProduction()
	log := c.Logger

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     c.Config.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler(log))
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", handlers.Health())
		v1.POST("/login", handlers.Login(c.UserService, secure, log))
		v1.POST("/logout", handlers.Logout(secure))
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(c.Tokens, c.UserService, secure, log))
	protected.GET("/profile", handlers.Profile(c.UserService, log))
	protected.GET("/notifications", handlers.ListNotifications(c.Mongo, log))
	protected.POST("/notifications/:id/read", handlers.MarkNotificationRead(c.Mongo, log))

	eventRoutes := protected.Group("/events")
	{
		eventRoutes.POST("", handlers.SubmitEvent(c.ApprovalService, log))
		eventRoutes.GET("/mine", handlers.ListMyEvents(c.ApprovalService, log))
		eventRoutes.GET("/:id", handlers.GetEvent(c.ApprovalService, log))
		eventRoutes.GET("/:id/conflicts", handlers.EventConflicts(c.AvailabilityService, log))
		eventRoutes.POST("/:id/approve", handlers.ApproveEvent(c.ApprovalService, log))
		eventRoutes.POST("/:id/reject", handlers.RejectEvent(c.ApprovalService, log))
		eventRoutes.POST("/:id/withdraw", handlers.WithdrawEvent(c.ApprovalService, log))
		eventRoutes.POST("/:id/cancel", handlers.CancelEvent(c.ApprovalService, log))
		eventRoutes.POST("/:id/override", handlers.OverrideEvent(c.ApprovalService, log))
		eventRoutes.POST("/:id/documents", handlers.AttachDocument(c.DocumentService, log))
	}

	venueRoutes := protected.Group("/venues")
	{
		venueRoutes.GET("", handlers.ListVenues(c.AvailabilityService, log))
		venueRoutes.GET("/available", handlers.AvailableVenues(c.AvailabilityService, log))
		venueRoutes.GET("/:id", handlers.GetVenue(c.AvailabilityService, log))
		venueRoutes.GET("/:id/calendar.ics", handlers.VenueCalendar(c.AvailabilityService, log))
		venueRoutes.POST("/import",
			middleware.RequireRole(models.RoleSystemAdmin),
			handlers.ImportVenues(c.ImportService, log),
		)
		venueRoutes.POST("/availability/import",
			middleware.RequireRole(models.RoleSystemAdmin),
			handlers.ImportAvailability(c.VenueService, log),
		)
		venueRoutes.PUT("/:id/availability",
			middleware.RequireRole(models.RoleSystemAdmin),
			handlers.SetVenueAvailability(c.VenueService, log),
		)
	}

	return r
}
