package handler

import (
	"net/http"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/service"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"github.com/gin-gonic/gin"
)

// SessionCookie writes the signed cookie that points at a web session.
type SessionCookie struct {
	signer *service.JWTService
	cfg    config.JWTConfig
	clock  clock.Clock
}

func NewSessionCookie(signer *service.JWTService, cfg config.JWTConfig, clk clock.Clock) *SessionCookie {
	return &SessionCookie{signer: signer, cfg: cfg, clock: clk}
}

func (s *SessionCookie) Set(c *gin.Context, session *service.Session) error {
	expiresAt := s.clock.Now().Add(s.cfg.SessionTTL)
	signed, err := s.signer.GenerateSessionToken(session, expiresAt)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, signed, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.Secure, true)
	return nil
}

func (s *SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, "", -1, "/", "", s.cfg.Secure, true)
}

// Replace points the cookie at session, or clears it when session is nil.
func (s *SessionCookie) Replace(c *gin.Context, session *service.Session) error {
	if session == nil {
		s.Clear(c)
		return nil
	}
	return s.Set(c, session)
}
