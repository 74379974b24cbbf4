package handler

import (
	"net/http"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/dto"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/internal/service"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/gin-gonic/gin"
)

// WebAuthHandler signs users in on the cookie surface. Any role may use it.
type WebAuthHandler struct {
	auth    *service.AuthService
	cookies *SessionCookie
}

func NewWebAuthHandler(auth *service.AuthService, cookies *SessionCookie) *WebAuthHandler {
	return &WebAuthHandler{
		auth:    auth,
		cookies: cookies,
	}
}

func (h *WebAuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "WebLogin")
	req := c.MustGet(constants.GinKeyRequest).(*dto.LoginRequest)

	result, err := h.auth.Login(ctx, service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Surface:    service.SurfaceWeb,
		Session:    middleware.CurrentSession(c),
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.cookies.Set(c, result.Session); err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Login successful", dto.WebLoginResponse{
		User: dto.NewUserView(result.User),
	}))
}

func (h *WebAuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "WebLogout")

	fresh, err := h.auth.Logout(ctx, middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := h.cookies.Replace(c, fresh); err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}
