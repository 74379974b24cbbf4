package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "UserCreate")

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	start := time.Now()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "User created").
		Uint("user_id", user.ID).
		Duration(time.Since(start)).
		Log()
	return nil
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "UserGetByID")

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, err
	}

	return &user, nil
}

// GetByEmail matches case-insensitively and returns nil, nil when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "UserGetByEmail")

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.DebugWithContext(ctx, "User not found by email").
			Duration(time.Since(start)).
			Log()
		return nil, nil
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to get user by email").
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, err
	}

	return &user, nil
}

// IncrementFailedAttempts bumps the counter in a single statement and sets
// the lock in that same statement once the new value reaches threshold.
// The returned user reflects the row after the update.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id uint, threshold int, lockUntil time.Time) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "IncrementFailedAttempts")

	start := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"account_locked_until": gorm.Expr(
				"CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE account_locked_until END",
				threshold, lockUntil,
			),
		}).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to increment failed login attempts").
			Uint("user_id", id).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// LockUntil sets the lock expiry without touching the attempt counter.
func (r *UserRepository) LockUntil(ctx context.Context, id uint, until time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "LockUntil")

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("account_locked_until", until).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to lock account").
			Uint("user_id", id).
			Err(err).
			Log()
	}
	return err
}

func (r *UserRepository) ResetLock(ctx context.Context, id uint) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "ResetLock")

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"account_locked_until":  nil,
		}).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to reset account lock").
			Uint("user_id", id).
			Err(err).
			Log()
	}
	return err
}

// ResetLockIfExpired clears the lock fields only when the stored lock has
// already passed at now. It is safe to call repeatedly and reports whether
// this call performed the reset.
func (r *UserRepository) ResetLockIfExpired(ctx context.Context, id uint, now time.Time) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ResetLockIfExpired")

	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND account_locked_until IS NOT NULL AND account_locked_until < ?", id, now).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"account_locked_until":  nil,
		})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to reconcile expired lock").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *UserRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "TouchActivity")

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to update last activity").
			Uint("user_id", id).
			Err(err).
			Log()
	}
	return err
}
