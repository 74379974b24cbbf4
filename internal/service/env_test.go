package service

import (
	"context"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/internal/repository"
	"github.com/Payphone-Digital/adminauth/internal/testutil"
	"github.com/Payphone-Digital/adminauth/pkg/cache"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret-0123456789",
			CookieName: "admin_session",
			SessionTTL: 2 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Request:              1000,
			Duration:             60,
			LoginMaxAttempts:     5,
			LoginDecay:           60,
			RefreshMaxAttempts:   10,
			RefreshDecay:         60,
			UnauthorizedMax:      10,
			UnauthorizedDecay:    300,
			RapidRequestMax:      100,
			RapidRequestDecay:    60,
			RequestPatternWindow: 50,
		},
		Security: config.SecurityConfig{
			LockThreshold: 5,
			LockDuration:  5 * time.Minute,
			IdleTimeout:   30 * time.Minute,
		},
		Token: config.TokenConfig{
			Prefix:           "pb_",
			MaxPerUser:       10,
			DefaultTTL:       7 * 24 * time.Hour,
			RememberTTL:      30 * 24 * time.Hour,
			RefreshThreshold: 2 * time.Hour,
			DefaultName:      "admin-token",
			AdminAbilities:   []string{"admin:read", "admin:write"},
			WebTokenName:     "web-token",
			WebTokenTTL:      30 * 24 * time.Hour,
		},
	}
}

type testEnv struct {
	db        *gorm.DB
	clock     *clock.Fake
	store     *cache.Cache
	cfg       *config.Config
	users     *repository.UserRepository
	tokenRepo *repository.TokenRepository
	limiter   *ratelimit.StoreLimiter
	locks     *AccountLock
	activity  *ActivityTracker
	tokens    *TokenStore
	sessions  *SessionManager
	cookies   *JWTService
	telemetry *Telemetry
	auth      *AuthService
	guard     *Guard
	sweeper   *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		db:    testutil.NewDB(t),
		clock: clock.NewFake(epoch),
		cfg:   testConfig(),
	}
	e.store = cache.NewCache(e.clock, 0)
	e.users = repository.NewUserRepository(e.db)
	e.tokenRepo = repository.NewTokenRepository(e.db)
	e.limiter = ratelimit.New(e.store, "")
	e.locks = NewAccountLock(e.users, e.clock, e.cfg.Security)
	e.activity = NewActivityTracker(e.users, e.clock, e.cfg.Security)
	e.tokens = NewTokenStore(e.tokenRepo, e.clock, e.cfg.Token)
	e.sessions = NewSessionManager(e.store, e.clock, e.cfg.JWT.SessionTTL)
	e.cookies = NewJWTService(e.cfg.JWT.Secret, "adminauth-test")
	e.telemetry = NewTelemetry(e.store, e.clock, e.cfg.RateLimit)
	e.auth = NewAuthService(e.users, e.locks, e.activity, e.tokens, e.sessions, e.limiter, e.clock, e.cfg)
	e.guard = NewGuard(e.users, e.tokens, e.sessions, e.cookies, e.locks, e.activity, e.telemetry, e.limiter, e.clock, e.cfg.RateLimit)
	e.sweeper = NewSweeper(e.tokenRepo, e.clock, e.cfg.Token.MaxPerUser)
	return e
}

func (e *testEnv) user(t *testing.T, email, role string) *model.User {
	return testutil.CreateUser(t, e.db, email, role)
}

func (e *testEnv) reload(t *testing.T, user *model.User) *model.User {
	return testutil.Reload(t, e.db, user)
}

func (e *testEnv) login(email, password string) (*LoginResult, error) {
	return e.auth.Login(context.Background(), LoginInput{
		Email:     email,
		Password:  password,
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
		Surface:   SurfaceAdminAPI,
	})
}

// bearer logs in and resolves the issued token the way middleware does.
func (e *testEnv) bearer(t *testing.T, email string) (Credential, *model.User, string) {
	t.Helper()

	result, err := e.login(email, testutil.Password)
	require.NoError(t, err)
	cred, user, err := e.guard.ResolveBearer(context.Background(), result.Token.PlainText)
	require.NoError(t, err)
	require.NotNil(t, cred)
	return cred, user, result.Token.PlainText
}

// issue creates a token for user directly, bypassing the login gate.
func (e *testEnv) issue(t *testing.T, user *model.User, name string) *NewAccessToken {
	t.Helper()

	issued, err := e.tokens.Issue(context.Background(), user, name, e.cfg.Token.AdminAbilities, e.cfg.Token.DefaultTTL)
	require.NoError(t, err)
	return issued
}
