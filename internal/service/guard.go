package service

import (
	"context"
	"strconv"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
)

// RequestInfo is the transport detail the guard logs and fingerprints.
type RequestInfo struct {
	IP            string
	UserAgent     string
	Method        string
	Route         string
	Endpoint      string
	Authorization string
	ForwardedFor  string
	RealIP        string
}

// Guard authenticates requests and gates admin routes. Checks run in a fixed
// order and stop at the first failure.
type Guard struct {
	users     UserStore
	tokens    *TokenStore
	sessions  *SessionManager
	cookies   *JWTService
	locks     *AccountLock
	activity  *ActivityTracker
	telemetry *Telemetry
	limiter   ratelimit.Limiter
	clock     clock.Clock
	policy    ratelimit.Policy
}

func NewGuard(
	users UserStore,
	tokens *TokenStore,
	sessions *SessionManager,
	cookies *JWTService,
	locks *AccountLock,
	activity *ActivityTracker,
	telemetry *Telemetry,
	limiter ratelimit.Limiter,
	clk clock.Clock,
	cfg config.RateLimitConfig,
) *Guard {
	return &Guard{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		cookies:   cookies,
		locks:     locks,
		activity:  activity,
		telemetry: telemetry,
		limiter:   limiter,
		clock:     clk,
		policy: ratelimit.Policy{
			Max:   cfg.UnauthorizedMax,
			Decay: config.Seconds(cfg.UnauthorizedDecay),
		},
	}
}

// ResolveBearer looks up the token and its owner. Unknown tokens resolve to
// nothing; expiry is checked later by Authenticate.
func (g *Guard) ResolveBearer(ctx context.Context, plain string) (Credential, *model.User, error) {
	token, err := g.tokens.Authenticate(ctx, plain)
	if err != nil {
		if apperrors.GetErrorCode(err) == apperrors.ErrUnauthenticated.Code {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	user, err := g.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, nil, nil
	}
	return BearerToken{Token: token}, user, nil
}

// ResolveSession verifies the cookie and loads the session it points at.
// Guest sessions are returned without a user.
func (g *Guard) ResolveSession(ctx context.Context, cookie string) (*Session, *model.User, error) {
	claims, err := g.cookies.ValidateSessionToken(cookie, g.clock.Now())
	if err != nil {
		return nil, nil, nil
	}
	session, err := g.sessions.Get(ctx, claims.SessionID())
	if err != nil || session == nil {
		return nil, nil, err
	}
	if session.UserID == 0 || session.UserID != claims.UserID() {
		return session, nil, nil
	}
	user, err := g.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return session, user, nil
}

// Authenticate is the gate for any signed-in route: credential present,
// token unexpired, session not idle. On pass last_activity is refreshed.
func (g *Guard) Authenticate(ctx context.Context, cred Credential, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Authenticate")

	if err := g.checkCredential(ctx, cred, user); err != nil {
		return err
	}
	if err := g.checkIdle(ctx, cred, user); err != nil {
		return err
	}
	return g.activity.UpdateLastActivity(ctx, user)
}

// Authorize is the admin gate. Order: authenticated, token valid, admin
// role, not locked, not idle. A passing request feeds telemetry.
func (g *Guard) Authorize(ctx context.Context, cred Credential, user *model.User, req RequestInfo) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Authorize")

	if err := g.checkCredential(ctx, cred, user); err != nil {
		return err
	}

	if !user.IsAdmin() {
		return g.rejectNonAdmin(ctx, user, req)
	}

	locked, err := g.locks.IsAccountLocked(ctx, user)
	if err != nil {
		return err
	}
	if locked {
		return g.locks.lockedError(user)
	}

	if err := g.checkIdle(ctx, cred, user); err != nil {
		return err
	}

	if err := g.activity.UpdateLastActivity(ctx, user); err != nil {
		return err
	}
	g.telemetry.Observe(ctx, cred, user, req)
	return nil
}

func (g *Guard) checkCredential(ctx context.Context, cred Credential, user *model.User) error {
	if cred == nil || user == nil {
		return apperrors.ErrUnauthenticated
	}
	if bearer, ok := cred.(BearerToken); ok {
		return g.tokens.Validate(ctx, bearer.Token)
	}
	return nil
}

// checkIdle ends the credential of a user idle past the timeout.
func (g *Guard) checkIdle(ctx context.Context, cred Credential, user *model.User) error {
	if !g.activity.IsSessionExpired(user) {
		return nil
	}

	switch c := cred.(type) {
	case BearerToken:
		if err := g.tokens.Revoke(ctx, c.Token.ID); err != nil {
			return err
		}
	case WebSession:
		if _, err := g.sessions.Invalidate(ctx, c.Session, "idle_timeout"); err != nil {
			return err
		}
	}

	logger.InfoWithContext(ctx, "Session expired due to inactivity").
		Uint("user_id", user.ID).
		Log()
	return apperrors.ErrSessionExpired
}

// rejectNonAdmin audits the attempt and counts it. Repeated attempts lock
// the account.
func (g *Guard) rejectNonAdmin(ctx context.Context, user *model.User, req RequestInfo) error {
	authorization := ""
	if req.Authorization != "" {
		authorization = constants.TokenTypeBearer + " [REDACTED]"
	}

	logger.WarnWithContext(ctx, "Unauthorized API access attempt").
		Uint("user_id", user.ID).
		String("email", user.Email).
		String("role", user.Role).
		String("ip", req.IP).
		String("user_agent", req.UserAgent).
		String("route", req.Route).
		String("method", req.Method).
		String("endpoint", req.Endpoint).
		Time("timestamp", g.clock.Now()).
		String("authorization", authorization).
		String("x_forwarded_for", req.ForwardedFor).
		String("x_real_ip", req.RealIP).
		Log()

	key := constants.CacheKeyUnauthorized + strconv.FormatUint(uint64(user.ID), 10)
	if _, err := g.limiter.Hit(ctx, key, g.policy.Decay); err != nil {
		return apperrors.Internal(err)
	}
	tooMany, err := g.limiter.TooManyAttempts(ctx, key, g.policy.Max)
	if err != nil {
		return apperrors.Internal(err)
	}
	if tooMany {
		if err := g.locks.LockAccount(ctx, user); err != nil {
			return err
		}
		logger.ErrorWithContext(ctx, "Account locked due to repeated unauthorized access attempts").
			Uint("user_id", user.ID).
			String("email", user.Email).
			Int("attempts", g.policy.Max).
			Log()
	}

	return apperrors.ErrInsufficientPrivileges
}
