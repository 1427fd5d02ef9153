package delivery

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"linktrack/internal/delivery/middleware"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHTTPRouter(handlers *HTTPHandlers, logger *logger.Logger, metrics *metrics.Metrics) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.CallerKey())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	router.Use(middleware.Timeout(30 * time.Second))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID", "X-API-Key"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// Public redirect endpoint
	router.GET("/t/:trackingId", r.handlers.Redirect)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		links := v1.Group("/links")
		{
			links.POST("", r.handlers.CreateLink)
			links.GET("", r.handlers.ListLinks)
			links.POST("/:trackingId/extend", r.handlers.ExtendExpiry)
			links.POST("/:trackingId/clicks", r.handlers.RecordClick)
			links.POST("/:trackingId/conversions", r.handlers.RecordConversion)
			links.GET("/:trackingId/analytics", r.handlers.GetAnalytics)
		}

		v1.POST("/sweep", r.handlers.SweepExpired)
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}
