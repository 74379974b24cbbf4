package router

import (
	"github.com/Payphone-Digital/adminauth/internal/dto"
	"github.com/gin-gonic/gin"
)

func newLoginRequest() any { return &dto.LoginRequest{} }

// authRoutes serves bearer-token callers. Signed-in routes also accept the
// session cookie; the handlers reject what a web session cannot do.
func (r *Router) authRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", r.validMw.ValidateRequestBody(newLoginRequest), r.authHandler.Login)

		protected := auth.Group("")
		protected.Use(r.authMw.RequireAuth())
		{
			protected.POST("/logout", r.authHandler.Logout)
			protected.GET("/me", r.authHandler.Me)
			protected.POST("/refresh", r.authHandler.Refresh)
			protected.GET("/devices", r.authHandler.Devices)
			protected.DELETE("/devices/:id", r.authHandler.RevokeDevice)
			protected.POST("/revoke-others", r.authHandler.RevokeOthers)
			protected.POST("/revoke-all", r.authHandler.RevokeAll)
		}
	}
}

func (r *Router) webRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", r.authMw.OptionalSession(), r.validMw.ValidateRequestBody(newLoginRequest), r.webAuthHandler.Login)
	rg.POST("/logout", r.authMw.RequireAuth(), r.webAuthHandler.Logout)
}
