package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
	"github.com/Payphone-Digital/adminauth/internal/repository"
)

// UserStore is the user persistence the auth core depends on. All mutations
// are single statements so concurrent requests never lose an update.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	IncrementFailedAttempts(ctx context.Context, id uint, threshold int, lockUntil time.Time) (*model.User, error)
	LockUntil(ctx context.Context, id uint, until time.Time) error
	ResetLock(ctx context.Context, id uint) error
	ResetLockIfExpired(ctx context.Context, id uint, now time.Time) (bool, error)
	TouchActivity(ctx context.Context, id uint, at time.Time) error
}

// TokenRepository is the personal access token persistence.
type TokenRepository interface {
	CreateWithinLimit(ctx context.Context, token *model.PersonalAccessToken, max int) (int64, error)
	FindByID(ctx context.Context, id uint) (*model.PersonalAccessToken, error)
	Delete(ctx context.Context, id uint) (int64, error)
	DeleteForUser(ctx context.Context, userID, id uint) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uint) (int64, error)
	DeleteAllForUserExcept(ctx context.Context, userID, keepID uint) (int64, error)
	ListActive(ctx context.Context, userID uint, now time.Time) ([]model.PersonalAccessToken, error)
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
	UpdateExpiry(ctx context.Context, id uint, until time.Time) error
}

// SweepRepository is the batch side of token persistence.
type SweepRepository interface {
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	OwnersOverLimit(ctx context.Context, max int) ([]repository.OwnerCount, error)
	TrimOwner(ctx context.Context, userID uint, max int) (int64, error)
	Stats(ctx context.Context, now, since time.Time) (repository.TokenStats, error)
	TopOwners(ctx context.Context, limit int) ([]repository.TopOwner, error)
}

var (
	_ UserStore       = (*repository.UserRepository)(nil)
	_ TokenRepository = (*repository.TokenRepository)(nil)
	_ SweepRepository = (*repository.TokenRepository)(nil)
)
