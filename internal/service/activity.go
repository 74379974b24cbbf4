package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
)

// ActivityTracker maintains last_activity and decides idle expiry.
type ActivityTracker struct {
	users   UserStore
	clock   clock.Clock
	timeout time.Duration
}

func NewActivityTracker(users UserStore, clk clock.Clock, cfg config.SecurityConfig) *ActivityTracker {
	return &ActivityTracker{users: users, clock: clk, timeout: cfg.IdleTimeout}
}

func (a *ActivityTracker) UpdateLastActivity(ctx context.Context, user *model.User) error {
	now := a.clock.Now()
	if err := a.users.TouchActivity(ctx, user.ID, now); err != nil {
		return apperrors.Internal(err)
	}
	user.LastActivity = &now
	return nil
}

// IsSessionExpired is false for users with no recorded activity.
func (a *ActivityTracker) IsSessionExpired(user *model.User) bool {
	return user.IdleExpired(a.clock.Now(), a.timeout)
}
