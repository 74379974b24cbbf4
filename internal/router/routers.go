package router

import (
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/handler"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authHandler        *handler.AuthHandler
	webAuthHandler     *handler.WebAuthHandler
	maintenanceHandler *handler.MaintenanceHandler
	healthHandler      *handler.HealthHandler

	validMw *middleware.ValidationMiddleware
	authMw  *middleware.AuthMiddleware
	limiter ratelimit.Limiter
	Config  *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	webAuth *handler.WebAuthHandler,
	maintenance *handler.MaintenanceHandler,
	health *handler.HealthHandler,

	validMw *middleware.ValidationMiddleware,
	authMw *middleware.AuthMiddleware,
	limiter ratelimit.Limiter,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:        auth,
		webAuthHandler:     webAuth,
		maintenanceHandler: maintenance,
		healthHandler:      health,

		validMw: validMw,
		authMw:  authMw,
		limiter: limiter,
		Config:  config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.ContextMiddleware(r.Config.App.Name, r.Config.App.Timeout))
	router.Use(middleware.CORS(r.Config.App.CORSOrigins))

	rateLimit := middleware.RateLimit(
		r.limiter,
		r.Config.RateLimit.Request,
		time.Duration(r.Config.RateLimit.Duration)*time.Second,
	)

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		v1.Use(rateLimit)
		{
			r.authRoutes(v1)
			r.adminRoutes(v1)
		}
	}

	r.webRoutes(router.Group("/web", rateLimit))

	return router
}
