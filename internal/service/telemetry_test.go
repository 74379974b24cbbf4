package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetry_DetectSuspicious(t *testing.T) {
	e := newTestEnv(t)
	user := &model.User{Email: "admin@test.com"}
	user.ID = 7
	ctx := context.Background()

	req := RequestInfo{IP: "10.0.0.1", UserAgent: "agent-a"}

	flags, err := e.telemetry.DetectSuspicious(ctx, user, req)
	require.NoError(t, err)
	assert.Empty(t, flags, "first sighting only records the fingerprint")

	flags, err = e.telemetry.DetectSuspicious(ctx, user, req)
	require.NoError(t, err)
	assert.Empty(t, flags)

	flags, err = e.telemetry.DetectSuspicious(ctx, user, RequestInfo{IP: "10.0.0.2", UserAgent: "agent-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{FlagIPChanged, FlagUserAgentChanged}, flags)

	flags, err = e.telemetry.DetectSuspicious(ctx, user, RequestInfo{IP: "10.0.0.2", UserAgent: "agent-b"})
	require.NoError(t, err)
	assert.Empty(t, flags, "new fingerprint was stored")
}

func TestTelemetry_RapidRequests(t *testing.T) {
	e := newTestEnv(t)
	user := &model.User{}
	user.ID = 3
	ctx := context.Background()
	req := RequestInfo{IP: "10.0.0.1", UserAgent: "bot"}

	for i := 1; i <= 100; i++ {
		flags, err := e.telemetry.DetectSuspicious(ctx, user, req)
		require.NoError(t, err)
		require.Empty(t, flags, "request %d", i)
	}

	flags, err := e.telemetry.DetectSuspicious(ctx, user, req)
	require.NoError(t, err)
	assert.Equal(t, []string{FlagRapidRequests}, flags)

	e.clock.Advance(time.Minute)
	flags, err = e.telemetry.DetectSuspicious(ctx, user, req)
	require.NoError(t, err)
	assert.Empty(t, flags, "window reset")
}

func TestTelemetry_RecordUsageKeepsRollingWindow(t *testing.T) {
	e := newTestEnv(t)
	e.telemetry.patternWindow = 3
	token := &model.PersonalAccessToken{ID: 11}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, e.telemetry.RecordUsage(ctx, token, RequestInfo{
			Method:   "GET",
			Endpoint: fmt.Sprintf("/api/v1/admin/orders/%d", i),
			IP:       "10.0.0.1",
		}))
	}

	used, err := e.telemetry.HourlyUsage(ctx, token.ID, epoch)
	require.NoError(t, err)
	assert.Equal(t, int64(5), used)

	patterns, err := e.telemetry.RecentRequests(ctx, token.ID)
	require.NoError(t, err)
	require.Len(t, patterns, 3)
	assert.Equal(t, "/api/v1/admin/orders/2", patterns[0].Endpoint)
	assert.Equal(t, "/api/v1/admin/orders/4", patterns[2].Endpoint)

	e.clock.Advance(time.Hour)
	used, err = e.telemetry.HourlyUsage(ctx, token.ID, e.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, used, "counters are per hour")
}
