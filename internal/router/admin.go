package router

import (
	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (r *Router) adminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(r.authMw.AdminGuard())
	{
		admin.GET("/me", middleware.RequireAbilities(constants.AbilityAdminRead), r.authHandler.Me)

		admin.GET("/maintenance/stats", middleware.RequireAbilities(constants.AbilityAdminRead), r.maintenanceHandler.Statistics)

		maintenance := admin.Group("/maintenance")
		maintenance.Use(middleware.RequireAbilities(constants.AbilityAdminRead, constants.AbilityAdminWrite))
		{
			maintenance.POST("/prune-expired", r.maintenanceHandler.PruneExpired)
			maintenance.POST("/prune-old", r.maintenanceHandler.PruneOld)
			maintenance.POST("/limit-tokens", r.maintenanceHandler.LimitTokens)
		}
	}
}
