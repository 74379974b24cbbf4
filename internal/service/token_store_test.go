package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_IssueAndAuthenticate(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	issued := e.issue(t, user, "laptop")

	id, secret, ok := strings.Cut(issued.PlainText, "|")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprint(issued.Token.ID), id)
	assert.True(t, strings.HasPrefix(secret, "pb_"))
	assert.Len(t, secret, len("pb_")+40)
	assert.NotContains(t, issued.Token.TokenHash, secret, "only the hash is stored")
	assert.Len(t, issued.Token.TokenHash, 64)
	require.NotNil(t, issued.Token.ExpiresAt)
	assert.True(t, issued.Token.ExpiresAt.Equal(epoch.Add(7*24*time.Hour)))

	token, err := e.tokens.Authenticate(ctx, issued.PlainText)
	require.NoError(t, err)
	assert.Equal(t, issued.Token.ID, token.ID)
	assert.True(t, token.Can("admin:write"))

	for _, bad := range []string{
		"",
		"garbage",
		id + "|pb_wrong",
		"0|" + secret,
		"999|" + secret,
		"abc|" + secret,
	} {
		_, err := e.tokens.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated, bad)
	}
}

func TestTokenStore_ExpiredTokenIsEvictedOnValidate(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	issued, err := e.tokens.Issue(ctx, user, "short", nil, time.Hour)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	token, err := e.tokens.Authenticate(ctx, issued.PlainText)
	require.NoError(t, err)

	err = e.tokens.Validate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	found, err := e.tokenRepo.FindByID(ctx, token.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = e.tokens.Authenticate(ctx, issued.PlainText)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestTokenStore_ValidateTouchesLastUsed(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	issued := e.issue(t, user, "laptop")
	assert.Nil(t, issued.Token.LastUsedAt)

	e.clock.Advance(time.Minute)
	require.NoError(t, e.tokens.Validate(ctx, issued.Token))

	found, err := e.tokenRepo.FindByID(ctx, issued.Token.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastUsedAt)
	assert.True(t, found.LastUsedAt.Equal(epoch.Add(time.Minute)))
}

func TestTokenStore_NeverExpiringToken(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	issued, err := e.tokens.Issue(ctx, user, "forever", []string{"*"}, 0)
	require.NoError(t, err)
	assert.Nil(t, issued.Token.ExpiresAt)
	assert.True(t, issued.Token.Can("anything:at-all"))

	e.clock.Advance(10 * 365 * 24 * time.Hour)
	assert.NoError(t, e.tokens.Validate(ctx, issued.Token))
}

func TestTokenStore_IssueRespectsPerUserCap(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "user@test.com", model.RoleAdmin)
	ctx := context.Background()

	var first *NewAccessToken
	for i := 1; i <= 11; i++ {
		issued := e.issue(t, user, fmt.Sprintf("device-%d", i))
		if i == 1 {
			first = issued
		}
		e.clock.Advance(time.Second)
	}

	active, err := e.tokens.ListActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 10)

	_, err = e.tokens.Authenticate(ctx, first.PlainText)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated, "oldest never-used token was evicted")
}

func TestTokenStore_IssueEvictsLeastRecentlyUsed(t *testing.T) {
	e := newTestEnv(t)
	e.tokens.max = 2
	user := e.user(t, "user@test.com", model.RoleAdmin)
	ctx := context.Background()

	old := e.issue(t, user, "old-but-busy")
	e.clock.Advance(time.Minute)
	idle := e.issue(t, user, "new-but-idle")
	e.clock.Advance(time.Minute)

	require.NoError(t, e.tokens.Validate(ctx, old.Token))
	require.NoError(t, e.tokens.Validate(ctx, idle.Token))
	e.clock.Advance(time.Minute)
	require.NoError(t, e.tokens.Validate(ctx, old.Token))

	e.issue(t, user, "third")

	_, err := e.tokens.Authenticate(ctx, idle.PlainText)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, err = e.tokens.Authenticate(ctx, old.PlainText)
	assert.NoError(t, err)
}

func TestTokenStore_Revocation(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice@test.com", model.RoleAdmin)
	bob := e.user(t, "bob@test.com", model.RoleAdmin)
	ctx := context.Background()

	a := e.issue(t, alice, "a")
	b := e.issue(t, alice, "b")
	c := e.issue(t, alice, "c")
	x := e.issue(t, bob, "x")

	assert.ErrorIs(t, e.tokens.RevokeForUser(ctx, alice.ID, x.Token.ID), apperrors.ErrNotFound)
	require.NoError(t, e.tokens.RevokeForUser(ctx, alice.ID, c.Token.ID))

	n, err := e.tokens.RevokeAllExceptCurrent(ctx, alice.ID, a.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.tokens.Authenticate(ctx, b.PlainText)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, err = e.tokens.Authenticate(ctx, a.PlainText)
	assert.NoError(t, err)

	n, err = e.tokens.RevokeAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.tokens.Authenticate(ctx, x.PlainText)
	assert.NoError(t, err, "other users are untouched")
}

func TestTokenStore_ListActiveAndExtend(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	short, err := e.tokens.Issue(ctx, user, "short", nil, time.Minute)
	require.NoError(t, err)
	long := e.issue(t, user, "long")

	e.clock.Advance(2 * time.Minute)
	active, err := e.tokens.ListActive(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, long.Token.ID, active[0].ID)

	require.NoError(t, e.tokens.Extend(ctx, short.Token, e.clock.Now().Add(time.Hour)))
	active, err = e.tokens.ListActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTokenStore_RejectsUnknownAbility(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	_, err := e.tokens.Issue(ctx, user, "typo", []string{"admin:raed"}, time.Hour)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, countTokens(t, e), "nothing is stored")

	issued, err := e.tokens.Issue(ctx, user, "web", []string{constants.AbilityWebAccess}, time.Hour)
	require.NoError(t, err)
	assert.True(t, issued.Token.Can(constants.AbilityWebAccess))
	assert.False(t, issued.Token.Can(constants.AbilityAdminRead))
}
