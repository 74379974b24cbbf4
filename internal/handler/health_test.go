package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/testutil"
	"github.com/Payphone-Digital/adminauth/pkg/circuit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, h *HealthHandler) (int, HealthCheckResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.GET("/health", h.HealthCheck)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthCheck_RedisDownIsDegradedNotFatal(t *testing.T) {
	db := testutil.NewDB(t)
	breaker := circuit.NewBreaker("redis", circuit.Config{Threshold: 1, Timeout: time.Hour, SuccessThreshold: 1}, nil)
	breaker.Record(errors.New("connection refused"))

	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	code, body := serveHealth(t, NewHealthHandler(db, down, breaker, "test"))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "unhealthy", body.Checks["redis"].Status)
	assert.Equal(t, "degraded", body.Checks["kv_store"].Status)
	assert.Contains(t, body.Checks["kv_store"].Message, "OPEN")
}

func TestHealthCheck_MissingDatabaseIsUnavailable(t *testing.T) {
	code, body := serveHealth(t, NewHealthHandler(nil, nil, nil, "test"))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "disabled", body.Checks["redis"].Status)
	assert.Equal(t, "healthy", body.Checks["kv_store"].Status)
}
