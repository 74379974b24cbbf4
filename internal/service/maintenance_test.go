package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countTokens(t *testing.T, e *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.PersonalAccessToken{}).Count(&n).Error)
	return n
}

func TestSweeper_PruneExpired(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	_, err := e.tokens.Issue(ctx, user, "short", nil, time.Hour)
	require.NoError(t, err)
	_, err = e.tokens.Issue(ctx, user, "forever", nil, 0)
	require.NoError(t, err)
	e.issue(t, user, "week")

	e.clock.Advance(2 * time.Hour)

	n, err := e.sweeper.PruneExpired(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(3), countTokens(t, e), "dry run does not delete")

	n, err = e.sweeper.PruneExpired(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), countTokens(t, e))
}

func TestSweeper_PruneOlderThan(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	_, err := e.tokens.Issue(ctx, user, "ancient", nil, 0)
	require.NoError(t, err)
	e.clock.Advance(20 * 24 * time.Hour)
	_, err = e.tokens.Issue(ctx, user, "recent", nil, 0)
	require.NoError(t, err)
	e.clock.Advance(11 * 24 * time.Hour)

	n, err := e.sweeper.PruneOlderThan(ctx, 30, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), countTokens(t, e))

	n, err = e.sweeper.PruneOlderThan(ctx, 30, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), countTokens(t, e))

	_, err = e.sweeper.PruneOlderThan(ctx, 0, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSweeper_EnforceTokenLimitsEvictsOldest(t *testing.T) {
	e := newTestEnv(t)
	heavy := e.user(t, "heavy@test.com", model.RoleAdmin)
	light := e.user(t, "light@test.com", model.RoleAdmin)
	ctx := context.Background()

	// rows inserted directly, as if the cap had been raised and lowered again
	var names []string
	for i := 0; i < 13; i++ {
		name := fmt.Sprintf("h%02d", i)
		names = append(names, name)
		require.NoError(t, e.db.Create(&model.PersonalAccessToken{
			UserID:    heavy.ID,
			Name:      name,
			TokenHash: fmt.Sprintf("%064d", i),
			CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	e.issue(t, light, "only")

	n, err := e.sweeper.EnforceTokenLimits(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(14), countTokens(t, e))

	n, err = e.sweeper.EnforceTokenLimits(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var kept []string
	require.NoError(t, e.db.Model(&model.PersonalAccessToken{}).
		Where("user_id = ?", heavy.ID).
		Order("name").
		Pluck("name", &kept).Error)
	assert.Equal(t, names[3:], kept, "newest tokens are kept")

	n, err = e.sweeper.EnforceTokenLimits(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_Run(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, "admin@test.com", model.RoleAdmin)
	ctx := context.Background()

	_, err := e.tokens.Issue(ctx, user, "short", nil, time.Minute)
	require.NoError(t, err)
	e.clock.Advance(time.Hour)

	report, err := e.sweeper.Run(ctx, SweepOptions{
		PruneExpired:  true,
		PruneOld:      true,
		OlderThanDays: 30,
		EnforceLimits: true,
		DryRun:        true,
	})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.NotNil(t, report.Expired)
	assert.Equal(t, int64(1), *report.Expired)
	require.NotNil(t, report.Old)
	assert.Zero(t, *report.Old)
	require.NotNil(t, report.OverLimit)
	assert.Zero(t, *report.OverLimit)
	assert.Equal(t, 10, report.MaxPerUser)

	report, err = e.sweeper.Run(ctx, SweepOptions{PruneExpired: true})
	require.NoError(t, err)
	assert.Nil(t, report.Old)
	assert.Nil(t, report.OverLimit)
	assert.Zero(t, countTokens(t, e))

	_, err = e.sweeper.Run(ctx, SweepOptions{PruneOld: true})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSweeper_StartStopsWithContext(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.sweeper.Start(ctx, time.Millisecond, SweepOptions{PruneExpired: true})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_Statistics(t *testing.T) {
	e := newTestEnv(t)
	heavy := e.user(t, "heavy@test.com", model.RoleAdmin)
	light := e.user(t, "light@test.com", model.RoleUser)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.issue(t, heavy, fmt.Sprintf("device-%d", i))
	}
	_, err := e.tokens.Issue(ctx, light, "short", nil, time.Minute)
	require.NoError(t, err)
	used := e.issue(t, light, "used")

	e.clock.Advance(2 * time.Minute)
	require.NoError(t, e.tokens.Validate(ctx, used.Token))

	stats, err := e.sweeper.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(1), stats.Expired)
	assert.Equal(t, int64(4), stats.Active)
	assert.Equal(t, int64(1), stats.UsedToday)
	assert.Equal(t, int64(2), stats.Owners)
	assert.Equal(t, 10, stats.MaxPerUser)

	require.Len(t, stats.TopOwners, 2)
	assert.Equal(t, "heavy@test.com", stats.TopOwners[0].Email)
	assert.Equal(t, int64(3), stats.TopOwners[0].Tokens)
	assert.Equal(t, int64(2), stats.TopOwners[1].Tokens)
}
