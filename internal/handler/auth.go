package handler

import (
	"net/http"
	"strconv"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/dto"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/internal/service"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth    *service.AuthService
	cookies *SessionCookie
}

func NewAuthHandler(auth *service.AuthService, cookies *SessionCookie) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		cookies: cookies,
	}
}

// Login issues a bearer token to an admin.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "Login")
	req := c.MustGet(constants.GinKeyRequest).(*dto.LoginRequest)

	result, err := h.auth.Login(ctx, service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceName: req.DeviceName,
		RememberMe: req.RememberMe,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Surface:    service.SurfaceAdminAPI,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	token := result.Token
	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     token.PlainText,
		TokenType: constants.TokenTypeBearer,
		ExpiresAt: token.Token.ExpiresAt,
		Abilities: []string(token.Token.Abilities),
		User:      dto.NewUserView(result.User),
	})
}

// Logout revokes the calling token, or ends the web session.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "Logout")

	fresh, err := h.auth.Logout(ctx, middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if !h.replaceSession(c, fresh) {
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, user))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "Refresh")

	resp, err := h.auth.Refresh(ctx, middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Token refreshed successfully", resp))
}

func (h *AuthHandler) Devices(c *gin.Context) {
	devices, err := h.auth.Devices(c.Request.Context(), middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, devices))
}

func (h *AuthHandler) RevokeDevice(c *gin.Context) {
	ctx := ctxutil.WithFunction(c.Request.Context(), "handler", "RevokeDevice")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		logger.WarnWithContext(ctx, "Invalid device id").
			String("id", c.Param("id")).
			Log()
		middleware.AbortWithError(c, apperrors.ErrInvalidInput)
		return
	}

	if err := h.auth.RevokeDevice(ctx, middleware.CurrentCredential(c), uint(id)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgDeviceRevoked))
}

func (h *AuthHandler) RevokeOthers(c *gin.Context) {
	n, err := h.auth.RevokeOthers(c.Request.Context(), middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Other devices revoked successfully", dto.RevokeResponse{Revoked: n}))
}

func (h *AuthHandler) RevokeAll(c *gin.Context) {
	n, fresh, err := h.auth.RevokeAll(c.Request.Context(), middleware.CurrentCredential(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if !h.replaceSession(c, fresh) {
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("All devices revoked successfully", dto.RevokeResponse{Revoked: n}))
}

// replaceSession re-points the cookie when the web session was replaced.
// Bearer callers get no cookie.
func (h *AuthHandler) replaceSession(c *gin.Context, fresh *service.Session) bool {
	if fresh == nil {
		return true
	}
	if err := h.cookies.Set(c, fresh); err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return false
	}
	return true
}
