package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/handler"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/internal/repository"
	"github.com/Payphone-Digital/adminauth/internal/service"
	"github.com/Payphone-Digital/adminauth/internal/testutil"
	"github.com/Payphone-Digital/adminauth/pkg/cache"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "admin-auth-test",
			Environment: "test",
			Timeout:     10 * time.Second,
		},
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
		Maintenance: config.MaintenanceConfig{
			Interval:     time.Hour,
			PruneOldDays: 30,
		},
	}
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	clock  *clock.Fake
	cfg    *config.Config
	tokens *service.TokenStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		db:    testutil.NewDB(t),
		clock: clock.NewFake(epoch),
		cfg:   testConfig(),
	}
	cfg := s.cfg

	store := cache.NewCache(s.clock, 0)
	limiter := ratelimit.New(store, "")
	users := repository.NewUserRepository(s.db)
	tokenRepo := repository.NewTokenRepository(s.db)

	locks := service.NewAccountLock(users, s.clock, cfg.Security)
	activity := service.NewActivityTracker(users, s.clock, cfg.Security)
	s.tokens = service.NewTokenStore(tokenRepo, s.clock, cfg.Token)
	sessions := service.NewSessionManager(store, s.clock, cfg.JWT.SessionTTL)
	signer := service.NewJWTService(cfg.JWT.Secret, cfg.App.Name)
	telemetry := service.NewTelemetry(store, s.clock, cfg.RateLimit)
	auth := service.NewAuthService(users, locks, activity, s.tokens, sessions, limiter, s.clock, cfg)
	guard := service.NewGuard(users, s.tokens, sessions, signer, locks, activity, telemetry, limiter, s.clock, cfg.RateLimit)
	sweeper := service.NewSweeper(tokenRepo, s.clock, cfg.Token.MaxPerUser)

	cookies := handler.NewSessionCookie(signer, cfg.JWT, s.clock)
	s.engine = NewRouter(
		handler.NewAuthHandler(auth, cookies),
		handler.NewWebAuthHandler(auth, cookies),
		handler.NewMaintenanceHandler(sweeper, cfg.Maintenance.PruneOldDays),
		handler.NewHealthHandler(s.db, nil, nil, "test"),
		middleware.NewValidationMiddleware(),
		middleware.NewAuthMiddleware(guard, cfg.JWT.CookieName),
		limiter,
		cfg,
	).SetupRoutes()
	return s
}

func (s *testServer) user(t *testing.T, email, role string) *model.User {
	return testutil.CreateUser(t, s.db, email, role)
}

type request struct {
	method string
	path   string
	body   any
	raw    string
	token  string
	cookie *http.Cookie
}

type response struct {
	*httptest.ResponseRecorder
	body map[string]any
}

func (r response) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *testServer) do(t *testing.T, r request) response {
	t.Helper()

	var body bytes.Buffer
	switch {
	case r.raw != "":
		body.WriteString(r.raw)
	case r.body != nil:
		require.NoError(t, json.NewEncoder(&body).Encode(r.body))
	}

	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "router-test")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	resp := response{ResponseRecorder: rec}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp.body), rec.Body.String())
	}
	return resp
}

func (s *testServer) login(t *testing.T, email, password string) response {
	t.Helper()
	return s.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   map[string]any{"email": email, "password": password},
	})
}

// token logs in over HTTP and returns the plain-text bearer token.
func (s *testServer) token(t *testing.T, email string) string {
	t.Helper()
	resp := s.login(t, email, testutil.Password)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return resp.body["token"].(string)
}
