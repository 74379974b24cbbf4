package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newToken(userID uint, name string, createdAt time.Time, lastUsed, expires *time.Time) *model.PersonalAccessToken {
	return &model.PersonalAccessToken{
		UserID:     userID,
		Name:       name,
		TokenHash:  fmt.Sprintf("%064s", name),
		Abilities:  []string{"admin:read"},
		CreatedAt:  createdAt,
		LastUsedAt: lastUsed,
		ExpiresAt:  expires,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func tokenNames(t *testing.T, db *gorm.DB, userID uint) []string {
	t.Helper()
	var names []string
	require.NoError(t, db.Model(&model.PersonalAccessToken{}).Where("user_id = ?", userID).Order("id").Pluck("name", &names).Error)
	return names
}

func TestTokenRepository_CreateWithinLimitEvictsOldestNeverUsed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	user := testutil.CreateUser(t, db, "user@test.com", model.RoleAdmin)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		_, err := repo.CreateWithinLimit(ctx, newToken(user.ID, fmt.Sprintf("t%02d", i), now.Add(time.Duration(i)*time.Minute), nil, nil), 10)
		require.NoError(t, err)
	}

	evicted, err := repo.CreateWithinLimit(ctx, newToken(user.ID, "t11", now.Add(11*time.Minute), nil, nil), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)

	names := tokenNames(t, db, user.ID)
	assert.Len(t, names, 10)
	assert.NotContains(t, names, "t01")
	assert.Contains(t, names, "t11")
}

func TestTokenRepository_EvictionPrefersLeastRecentlyUsed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	user := testutil.CreateUser(t, db, "lru@test.com", model.RoleAdmin)
	ctx := context.Background()

	// oldest by creation but used recently
	_, err := repo.CreateWithinLimit(ctx, newToken(user.ID, "recent", now, ptr(now.Add(time.Hour)), nil), 3)
	require.NoError(t, err)
	_, err = repo.CreateWithinLimit(ctx, newToken(user.ID, "stale", now.Add(time.Minute), ptr(now.Add(2*time.Minute)), nil), 3)
	require.NoError(t, err)
	_, err = repo.CreateWithinLimit(ctx, newToken(user.ID, "never", now.Add(2*time.Minute), nil, nil), 3)
	require.NoError(t, err)

	_, err = repo.CreateWithinLimit(ctx, newToken(user.ID, "new1", now.Add(3*time.Minute), nil, nil), 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recent", "stale", "new1"}, tokenNames(t, db, user.ID))

	_, err = repo.CreateWithinLimit(ctx, newToken(user.ID, "new2", now.Add(4*time.Minute), nil, nil), 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recent", "stale", "new2"}, tokenNames(t, db, user.ID),
		"never-used tokens go before used ones")
}

func TestTokenRepository_DeleteScopes(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	alice := testutil.CreateUser(t, db, "alice@test.com", model.RoleAdmin)
	bob := testutil.CreateUser(t, db, "bob@test.com", model.RoleAdmin)
	ctx := context.Background()

	a := newToken(alice.ID, "a", now, nil, nil)
	b := newToken(alice.ID, "b", now, nil, nil)
	c := newToken(alice.ID, "c", now, nil, nil)
	x := newToken(bob.ID, "x", now, nil, nil)
	for _, tok := range []*model.PersonalAccessToken{a, b, c, x} {
		_, err := repo.CreateWithinLimit(ctx, tok, 10)
		require.NoError(t, err)
	}

	n, err := repo.DeleteForUser(ctx, alice.ID, x.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "cannot delete another user's token")

	n, err = repo.DeleteAllForUserExcept(ctx, alice.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"a"}, tokenNames(t, db, alice.ID))
	assert.Equal(t, []string{"x"}, tokenNames(t, db, bob.ID))

	n, err = repo.DeleteAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTokenRepository_ListActiveSkipsExpired(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	user := testutil.CreateUser(t, db, "list@test.com", model.RoleAdmin)
	ctx := context.Background()

	for _, tok := range []*model.PersonalAccessToken{
		newToken(user.ID, "forever", now, nil, nil),
		newToken(user.ID, "valid", now, ptr(now.Add(time.Minute)), ptr(now.Add(time.Hour))),
		newToken(user.ID, "expired", now, nil, ptr(now.Add(-time.Minute))),
	} {
		_, err := repo.CreateWithinLimit(ctx, tok, 10)
		require.NoError(t, err)
	}

	tokens, err := repo.ListActive(ctx, user.ID, now)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "valid", tokens[0].Name, "most recently used first")
	assert.Equal(t, "forever", tokens[1].Name)
}

func TestTokenRepository_MaintenanceQueries(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	heavy := testutil.CreateUser(t, db, "heavy@test.com", model.RoleAdmin)
	light := testutil.CreateUser(t, db, "light@test.com", model.RoleAdmin)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(newToken(heavy.ID, fmt.Sprintf("h%d", i), now.Add(-time.Duration(40-i)*24*time.Hour), nil, nil)).Error)
	}
	require.NoError(t, db.Create(newToken(light.ID, "expired", now, nil, ptr(now.Add(-time.Second)))).Error)

	n, err := repo.CountExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountCreatedBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	owners, err := repo.OwnersOverLimit(ctx, 3)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, heavy.ID, owners[0].UserID)
	assert.Equal(t, int64(5), owners[0].Total)

	evicted, err := repo.TrimOwner(ctx, heavy.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), evicted)
	assert.Equal(t, []string{"h2", "h3", "h4"}, tokenNames(t, db, heavy.ID))

	n, err = repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteCreatedBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTokenRepository_TokenExpiringNowIsExpired(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTokenRepository(db)
	user := testutil.CreateUser(t, db, "edge@test.com", model.RoleAdmin)
	ctx := context.Background()

	require.NoError(t, db.Create(newToken(user.ID, "edge", now.Add(-time.Hour), nil, ptr(now))).Error)
	require.NoError(t, db.Create(newToken(user.ID, "later", now.Add(-time.Hour), nil, ptr(now.Add(time.Second)))).Error)

	active, err := repo.ListActive(ctx, user.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "later", active[0].Name)

	stats, err := repo.Stats(ctx, now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Expired, "active and expired add up to the total")

	n, err := repo.CountExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"later"}, tokenNames(t, db, user.ID))
}
