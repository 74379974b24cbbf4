package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/dto"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

// Surface selects what a successful login produces.
type Surface int

const (
	// SurfaceAdminAPI issues a bearer token and requires the admin role.
	SurfaceAdminAPI Surface = iota
	// SurfaceWeb binds a web session and admits any role.
	SurfaceWeb
)

func (s Surface) String() string {
	if s == SurfaceWeb {
		return "web"
	}
	return "admin_api"
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceName string
	RememberMe bool
	IP         string
	UserAgent  string
	Surface    Surface
	// Session is the caller's current web session, if any.
	Session *Session
}

// LoginResult holds Token for the admin API surface and Session for web.
// The web token is kept inside the session, not returned.
type LoginResult struct {
	User    *model.User
	Token   *NewAccessToken
	Session *Session
}

type AuthService struct {
	users    UserStore
	locks    *AccountLock
	activity *ActivityTracker
	tokens   *TokenStore
	sessions *SessionManager
	limiter  ratelimit.Limiter
	clock    clock.Clock

	tokenCfg config.TokenConfig
	login    ratelimit.Policy
	refresh  ratelimit.Policy
}

func NewAuthService(
	users UserStore,
	locks *AccountLock,
	activity *ActivityTracker,
	tokens *TokenStore,
	sessions *SessionManager,
	limiter ratelimit.Limiter,
	clk clock.Clock,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:    users,
		locks:    locks,
		activity: activity,
		tokens:   tokens,
		sessions: sessions,
		limiter:  limiter,
		clock:    clk,
		tokenCfg: cfg.Token,
		login: ratelimit.Policy{
			Max:   cfg.RateLimit.LoginMaxAttempts,
			Decay: config.Seconds(cfg.RateLimit.LoginDecay),
		},
		refresh: ratelimit.Policy{
			Max:   cfg.RateLimit.RefreshMaxAttempts,
			Decay: config.Seconds(cfg.RateLimit.RefreshDecay),
		},
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// checkPassword compares against a throwaway hash when the user is unknown
// so both failure paths run bcrypt.
func checkPassword(user *model.User, password string) bool {
	if user == nil {
		dummyHashOnce.Do(func() {
			dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
		})
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// LoginThrottleKey is the limiter key for one email and client address.
func LoginThrottleKey(email, ip string) string {
	return constants.CacheKeyLogin + strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Login runs the throttle, lock, credential and role checks in that order.
// Lock and throttle state are reset on any correct password, before the role
// gate is applied.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Login")

	throttleKey := LoginThrottleKey(in.Email, in.IP)
	tooMany, err := s.limiter.TooManyAttempts(ctx, throttleKey, s.login.Max)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if tooMany {
		wait, err := s.limiter.AvailableIn(ctx, throttleKey)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		logger.WarnWithContext(ctx, "Login throttled").
			String("email", in.Email).
			String("ip", in.IP).
			Log()
		return nil, apperrors.WithRetryAfter(apperrors.ErrThrottled, ratelimit.RetrySeconds(wait))
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if user != nil {
		locked, err := s.locks.IsAccountLocked(ctx, user)
		if err != nil {
			return nil, err
		}
		if locked {
			logger.WarnWithContext(ctx, "Login attempt on locked account").
				Uint("user_id", user.ID).
				String("email", user.Email).
				String("ip", in.IP).
				Log()
			return nil, s.locks.lockedError(user)
		}
	}

	if !checkPassword(user, in.Password) {
		if _, err := s.limiter.Hit(ctx, throttleKey, s.login.Decay); err != nil {
			return nil, apperrors.Internal(err)
		}
		if user != nil {
			if err := s.locks.IncrementFailedAttempts(ctx, user); err != nil {
				return nil, err
			}
		}
		logger.WarnWithContext(ctx, "Failed login attempt").
			String("email", in.Email).
			String("ip", in.IP).
			String("user_agent", in.UserAgent).
			String("surface", in.Surface.String()).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.limiter.Clear(ctx, throttleKey); err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.locks.ResetAccountLock(ctx, user); err != nil {
		return nil, err
	}

	if in.Surface == SurfaceAdminAPI && !user.IsAdmin() {
		logger.WarnWithContext(ctx, "Non-admin login attempt on admin API").
			Uint("user_id", user.ID).
			String("email", user.Email).
			String("role", user.Role).
			String("ip", in.IP).
			Log()
		return nil, apperrors.ErrForbidden
	}

	if err := s.activity.UpdateLastActivity(ctx, user); err != nil {
		return nil, err
	}

	result := &LoginResult{User: user}
	switch in.Surface {
	case SurfaceWeb:
		issued, err := s.tokens.Issue(ctx, user, s.tokenCfg.WebTokenName,
			[]string{constants.AbilityWebAccess}, s.tokenCfg.WebTokenTTL)
		if err != nil {
			return nil, err
		}
		session, err := s.sessions.Regenerate(ctx, in.Session, user.ID)
		if err != nil {
			return nil, err
		}
		session.Data[constants.SessionKeyToken] = issued.PlainText
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		result.Session = session
	default:
		name := strings.TrimSpace(in.DeviceName)
		if name == "" {
			name = s.tokenCfg.DefaultName
		}
		ttl := s.tokenCfg.DefaultTTL
		if in.RememberMe {
			ttl = s.tokenCfg.RememberTTL
		}
		issued, err := s.tokens.Issue(ctx, user, name, s.tokenCfg.AdminAbilities, ttl)
		if err != nil {
			return nil, err
		}
		result.Token = issued
	}

	logger.InfoWithContext(ctx, "Login successful").
		Uint("user_id", user.ID).
		String("email", user.Email).
		String("ip", in.IP).
		String("surface", in.Surface.String()).
		Bool("remember_me", in.RememberMe).
		Log()
	return result, nil
}

// Logout revokes the current token. A web logout revokes every token of the
// user, destroys the session and returns the guest session that replaces it.
func (s *AuthService) Logout(ctx context.Context, cred Credential) (*Session, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Logout")

	switch c := cred.(type) {
	case BearerToken:
		if err := s.tokens.Revoke(ctx, c.Token.ID); err != nil {
			return nil, err
		}
		logger.InfoWithContext(ctx, "User logout").
			String("type", "api").
			Uint("user_id", c.Token.UserID).
			Uint("token_id", c.Token.ID).
			Log()
		return nil, nil
	case WebSession:
		revoked, err := s.tokens.RevokeAllForUser(ctx, c.Session.UserID)
		if err != nil {
			return nil, err
		}
		fresh, err := s.sessions.Invalidate(ctx, c.Session, "logout")
		if err != nil {
			return nil, err
		}
		logger.InfoWithContext(ctx, "User logout").
			String("type", "web").
			Uint("user_id", c.Session.UserID).
			Int64("tokens_revoked", revoked).
			Log()
		return fresh, nil
	default:
		return nil, apperrors.ErrUnauthenticated
	}
}

// Me reloads the authenticated user.
func (s *AuthService) Me(ctx context.Context, cred Credential) (*dto.UserView, error) {
	user, err := s.users.GetByID(ctx, cred.OwnerID())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	view := dto.NewUserView(user)
	return &view, nil
}

// Refresh extends a bearer token that is within the refresh threshold of its
// expiry. Tokens that never expire have nothing to refresh. Only calls that
// would extend a token count against the refresh limit.
func (s *AuthService) Refresh(ctx context.Context, cred Credential) (*dto.RefreshResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Refresh")

	bearer, ok := cred.(BearerToken)
	if !ok {
		return nil, apperrors.ErrUnsupported
	}
	token := bearer.Token

	now := s.clock.Now()
	if token.ExpiresAt == nil || token.ExpiresAt.Sub(now) > s.tokenCfg.RefreshThreshold {
		return nil, apperrors.ErrNotYetNeeded
	}

	key := constants.CacheKeyRefresh + strconv.FormatUint(uint64(token.UserID), 10)
	tooMany, err := s.limiter.TooManyAttempts(ctx, key, s.refresh.Max)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if tooMany {
		wait, err := s.limiter.AvailableIn(ctx, key)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		return nil, apperrors.WithRetryAfter(apperrors.ErrThrottled, ratelimit.RetrySeconds(wait))
	}
	if _, err := s.limiter.Hit(ctx, key, s.refresh.Decay); err != nil {
		return nil, apperrors.Internal(err)
	}

	until := now.Add(s.tokenCfg.DefaultTTL)
	if err := s.tokens.Extend(ctx, token, until); err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Token refreshed").
		Uint("user_id", token.UserID).
		Uint("token_id", token.ID).
		Time("expires_at", until).
		Log()
	return &dto.RefreshResponse{ExpiresAt: until}, nil
}

// Devices lists the caller's active tokens, marking the one in use.
func (s *AuthService) Devices(ctx context.Context, cred Credential) ([]dto.DeviceSummary, error) {
	bearer, ok := cred.(BearerToken)
	if !ok {
		return nil, apperrors.ErrUnsupported
	}

	tokens, err := s.tokens.ListActive(ctx, bearer.Token.UserID)
	if err != nil {
		return nil, err
	}

	devices := make([]dto.DeviceSummary, 0, len(tokens))
	for _, t := range tokens {
		devices = append(devices, dto.DeviceSummary{
			ID:         t.ID,
			Name:       t.Name,
			Abilities:  []string(t.Abilities),
			LastUsedAt: t.LastUsedAt,
			ExpiresAt:  t.ExpiresAt,
			CreatedAt:  t.CreatedAt,
			Current:    t.ID == bearer.Token.ID,
		})
	}
	return devices, nil
}

// RevokeDevice deletes one of the caller's tokens.
func (s *AuthService) RevokeDevice(ctx context.Context, cred Credential, tokenID uint) error {
	ctx = ctxutil.WithFunction(ctx, "service", "RevokeDevice")

	if err := s.tokens.RevokeForUser(ctx, cred.OwnerID(), tokenID); err != nil {
		return err
	}
	logger.InfoWithContext(ctx, "Token revoked").
		Uint("user_id", cred.OwnerID()).
		Uint("token_id", tokenID).
		Log()
	return nil
}

// RevokeOthers keeps only the token making the request.
func (s *AuthService) RevokeOthers(ctx context.Context, cred Credential) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "RevokeOthers")

	bearer, ok := cred.(BearerToken)
	if !ok {
		return 0, apperrors.ErrUnsupported
	}
	n, err := s.tokens.RevokeAllExceptCurrent(ctx, bearer.Token.UserID, bearer.Token.ID)
	if err != nil {
		return 0, err
	}
	logger.InfoWithContext(ctx, "Other tokens revoked").
		Uint("user_id", bearer.Token.UserID).
		Uint("kept_token_id", bearer.Token.ID).
		Int64("tokens_revoked", n).
		Log()
	return n, nil
}

// RevokeAll deletes every token of the caller. A web caller also loses its
// session and receives a fresh guest session.
func (s *AuthService) RevokeAll(ctx context.Context, cred Credential) (int64, *Session, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "RevokeAll")

	n, err := s.tokens.RevokeAllForUser(ctx, cred.OwnerID())
	if err != nil {
		return 0, nil, err
	}
	logger.InfoWithContext(ctx, "All tokens revoked").
		Uint("user_id", cred.OwnerID()).
		Int64("tokens_revoked", n).
		Log()

	web, ok := cred.(WebSession)
	if !ok {
		return n, nil, nil
	}
	fresh, err := s.sessions.Invalidate(ctx, web.Session, "revoke_all")
	if err != nil {
		return n, nil, err
	}
	return n, fresh, nil
}

// SessionExpiry is when a web session started at now lapses.
func (s *AuthService) SessionExpiry(now time.Time) time.Time {
	return now.Add(s.sessions.TTL())
}
