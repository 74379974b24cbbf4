package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	session, err := e.sessions.Create(ctx, 5)
	require.NoError(t, err)
	session.Data["user_preferences"] = "dark"
	session.Data["locale"] = "id"
	require.NoError(t, e.sessions.Save(ctx, session))

	loaded, err := e.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint(5), loaded.UserID)
	assert.Equal(t, "dark", loaded.Data["user_preferences"])

	fresh, err := e.sessions.Invalidate(ctx, loaded, "logout")
	require.NoError(t, err)
	assert.NotEqual(t, loaded.ID, fresh.ID)
	assert.NotContains(t, loaded.Data, "user_preferences")
	assert.Contains(t, loaded.Data, "locale", "only logout keys are cleared")

	gone, err := e.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	e.clock.Advance(3 * time.Hour)
	expired, err := e.sessions.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, expired, "sessions expire with their ttl")
}

func TestJWTService_SessionToken(t *testing.T) {
	e := newTestEnv(t)
	session := &Session{ID: "3f1c", UserID: 9, CreatedAt: epoch}

	signed, err := e.cookies.GenerateSessionToken(session, epoch.Add(time.Hour))
	require.NoError(t, err)

	claims, err := e.cookies.ValidateSessionToken(signed, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "3f1c", claims.SessionID())
	assert.Equal(t, uint(9), claims.UserID())

	_, err = e.cookies.ValidateSessionToken(signed, epoch.Add(2*time.Hour))
	assert.Error(t, err)

	other := NewJWTService("another-secret-0123456789", "adminauth-test")
	_, err = other.ValidateSessionToken(signed, epoch.Add(time.Minute))
	assert.Error(t, err)
}
