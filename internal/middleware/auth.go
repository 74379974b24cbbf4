package middleware

import (
	"strings"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/internal/service"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the caller from a bearer token or the signed
// session cookie and applies the guard.
type AuthMiddleware struct {
	guard      *service.Guard
	cookieName string
}

func NewAuthMiddleware(guard *service.Guard, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		guard:      guard,
		cookieName: cookieName,
	}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, constants.TokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolve prefers the bearer header; the cookie is only consulted when no
// header was sent. The resolved session, guest or not, is stored on c.
func (m *AuthMiddleware) resolve(c *gin.Context) (service.Credential, *model.User, error) {
	ctx := c.Request.Context()

	if plain := BearerToken(c.GetHeader(constants.HeaderAuthorization)); plain != "" {
		return m.guard.ResolveBearer(ctx, plain)
	}

	cookie, err := c.Cookie(m.cookieName)
	if err != nil || cookie == "" {
		return nil, nil, nil
	}
	session, user, err := m.guard.ResolveSession(ctx, cookie)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		c.Set(constants.GinKeySession, session)
	}
	if session == nil || user == nil {
		return nil, nil, nil
	}
	return service.WebSession{Session: session}, user, nil
}

func (m *AuthMiddleware) attach(c *gin.Context, cred service.Credential, user *model.User) {
	c.Set(constants.GinKeyCredential, cred)
	c.Set(constants.GinKeyUser, user)
	c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), user.ID))
}

// RequireAuth admits any signed-in user whose credential is valid and not
// idle. Roles are not checked.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, user, err := m.resolve(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := m.guard.Authenticate(c.Request.Context(), cred, user); err != nil {
			AbortWithError(c, err)
			return
		}
		m.attach(c, cred, user)
		c.Next()
	}
}

// AdminGuard admits admins only and records request telemetry.
func (m *AuthMiddleware) AdminGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, user, err := m.resolve(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := m.guard.Authorize(c.Request.Context(), cred, user, RequestInfo(c)); err != nil {
			AbortWithError(c, err)
			return
		}
		m.attach(c, cred, user)
		c.Next()
	}
}

// OptionalSession loads the session cookie, if any, without requiring a
// signed-in user. Web login uses it to rotate the existing session.
func (m *AuthMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(m.cookieName)
		if err == nil && cookie != "" {
			session, _, err := m.guard.ResolveSession(c.Request.Context(), cookie)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			if session != nil {
				c.Set(constants.GinKeySession, session)
			}
		}
		c.Next()
	}
}

// RequireAbilities must run after RequireAuth or AdminGuard. Bearer tokens
// need every listed ability; web sessions carry none and pass.
func RequireAbilities(abilities ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := CurrentCredential(c).(service.BearerToken)
		if !ok {
			c.Next()
			return
		}
		for _, ability := range abilities {
			if !bearer.Can(ability) {
				logger.WarnWithContext(c.Request.Context(), "Token missing ability").
					Uint("token_id", bearer.Token.ID).
					String("ability", ability).
					String("path", c.Request.URL.Path).
					Log()
				AbortWithError(c, apperrors.ErrMissingAbility)
				return
			}
		}
		c.Next()
	}
}

// RequestInfo collects the request details the guard logs and fingerprints.
func RequestInfo(c *gin.Context) service.RequestInfo {
	return service.RequestInfo{
		IP:            c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
		Method:        c.Request.Method,
		Route:         c.FullPath(),
		Endpoint:      c.Request.URL.Path,
		Authorization: c.GetHeader(constants.HeaderAuthorization),
		ForwardedFor:  c.GetHeader(constants.HeaderXForwardedFor),
		RealIP:        c.GetHeader(constants.HeaderXRealIP),
	}
}

// CurrentCredential returns the credential attached by the auth middleware.
func CurrentCredential(c *gin.Context) service.Credential {
	if v, ok := c.Get(constants.GinKeyCredential); ok {
		if cred, ok := v.(service.Credential); ok {
			return cred
		}
	}
	return nil
}

func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(constants.GinKeyUser); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

// CurrentSession returns the session cookie's session, which may be a guest.
func CurrentSession(c *gin.Context) *service.Session {
	if v, ok := c.Get(constants.GinKeySession); ok {
		if session, ok := v.(*service.Session); ok {
			return session
		}
	}
	return nil
}
