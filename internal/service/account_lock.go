package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
)

// AccountLock tracks consecutive failed logins and the temporary lock they
// trigger. Lock expiry is evaluated lazily when the lock is checked.
type AccountLock struct {
	users     UserStore
	clock     clock.Clock
	threshold int
	duration  time.Duration
}

func NewAccountLock(users UserStore, clk clock.Clock, cfg config.SecurityConfig) *AccountLock {
	return &AccountLock{
		users:     users,
		clock:     clk,
		threshold: cfg.LockThreshold,
		duration:  cfg.LockDuration,
	}
}

// IncrementFailedAttempts records one failed login. Reaching the threshold
// locks the account in the same statement. user is refreshed in place.
func (a *AccountLock) IncrementFailedAttempts(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "service", "IncrementFailedAttempts")

	updated, err := a.users.IncrementFailedAttempts(ctx, user.ID, a.threshold, a.clock.Now().Add(a.duration))
	if err != nil {
		return apperrors.Internal(err)
	}
	if updated == nil {
		return nil
	}

	wasLocked := user.AccountLockedUntil != nil
	*user = *updated

	if !wasLocked && user.AccountLockedUntil != nil {
		logger.WarnWithContext(ctx, "Account locked after repeated failed logins").
			Uint("user_id", user.ID).
			String("email", user.Email).
			Int("failed_attempts", user.FailedLoginAttempts).
			Time("locked_until", *user.AccountLockedUntil).
			Log()
	}
	return nil
}

// LockAccount locks the account for the configured duration without touching
// the failed attempt counter.
func (a *AccountLock) LockAccount(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "service", "LockAccount")

	until := a.clock.Now().Add(a.duration)
	if err := a.users.LockUntil(ctx, user.ID, until); err != nil {
		return apperrors.Internal(err)
	}
	user.AccountLockedUntil = &until

	logger.WarnWithContext(ctx, "Account locked").
		Uint("user_id", user.ID).
		String("email", user.Email).
		Time("locked_until", until).
		Log()
	return nil
}

// LockedAt is the read-only lock predicate.
func (a *AccountLock) LockedAt(user *model.User, now time.Time) bool {
	return user.LockedAt(now)
}

// IsAccountLocked reports whether the lock is in force. A lock that has
// lapsed is cleared in storage as a side effect, so a second check is a
// no-op.
func (a *AccountLock) IsAccountLocked(ctx context.Context, user *model.User) (bool, error) {
	now := a.clock.Now()
	if user.LockedAt(now) {
		return true, nil
	}
	if user.LockLapsed(now) {
		if err := a.Reconcile(ctx, user, now); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Reconcile clears a lapsed lock. It is conditional in storage, so racing
// requests reset it at most once.
func (a *AccountLock) Reconcile(ctx context.Context, user *model.User, now time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ReconcileLock")

	reset, err := a.users.ResetLockIfExpired(ctx, user.ID, now)
	if err != nil {
		return apperrors.Internal(err)
	}
	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil

	if reset {
		logger.InfoWithContext(ctx, "Expired account lock cleared").
			Uint("user_id", user.ID).
			Log()
	}
	return nil
}

// ResetAccountLock zeroes the counter and clears any lock.
func (a *AccountLock) ResetAccountLock(ctx context.Context, user *model.User) error {
	if err := a.users.ResetLock(ctx, user.ID); err != nil {
		return apperrors.Internal(err)
	}
	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	return nil
}

// RetryAfter is the remaining lock time in whole seconds, rounded up.
func (a *AccountLock) RetryAfter(user *model.User) int {
	if user.AccountLockedUntil == nil {
		return 0
	}
	return ratelimit.RetrySeconds(user.AccountLockedUntil.Sub(a.clock.Now()))
}

// lockedError builds ACCOUNT_LOCKED carrying the back-off hint.
func (a *AccountLock) lockedError(user *model.User) error {
	return apperrors.WithRetryAfter(apperrors.ErrAccountLocked, a.RetryAfter(user))
}
