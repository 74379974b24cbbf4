package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// evictionOrder puts never-used tokens first, then least recently used,
// then oldest. id breaks ties between rows created in the same instant.
const evictionOrder = "last_used_at IS NOT NULL, last_used_at ASC, created_at ASC, id ASC"

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// OwnerCount is a per-user token tally.
type OwnerCount struct {
	UserID uint
	Total  int64
}

// TokenStats summarises the token table at one instant.
type TokenStats struct {
	Total     int64
	Expired   int64
	UsedSince int64
	Owners    int64
}

// TopOwner is a user ranked by how many tokens they hold.
type TopOwner struct {
	UserID uint
	Email  string
	Role   string
	Total  int64
}

// CreateWithinLimit inserts token after evicting the owner's oldest tokens
// so that at most max remain. The owner row is locked for the duration of
// the transaction so concurrent logins for one user serialize here.
func (r *TokenRepository) CreateWithinLimit(ctx context.Context, token *model.PersonalAccessToken, max int) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "TokenCreateWithinLimit")

	start := time.Now()
	var evicted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", token.UserID).
			First(&owner).Error; err != nil {
			return err
		}

		n, err := trimOwner(tx, token.UserID, max-1)
		if err != nil {
			return err
		}
		evicted = n

		return tx.Create(token).Error
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue token").
			Uint("user_id", token.UserID).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return 0, err
	}

	if evicted > 0 {
		logger.InfoWithContext(ctx, "Evicted tokens over per-user limit").
			Uint("user_id", token.UserID).
			Int64("evicted", evicted).
			Int("max_tokens", max).
			Log()
	}
	return evicted, nil
}

// trimOwner deletes the owner's tokens beyond keep, in eviction order.
func trimOwner(tx *gorm.DB, userID uint, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var total int64
	if err := tx.Model(&model.PersonalAccessToken{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, err
	}
	excess := int(total) - keep
	if excess <= 0 {
		return 0, nil
	}

	var ids []uint
	if err := tx.Model(&model.PersonalAccessToken{}).
		Where("user_id = ?", userID).
		Order(evictionOrder).
		Limit(excess).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := tx.Where("id IN ?", ids).Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

// FindByID returns nil, nil when the token does not exist.
func (r *TokenRepository) FindByID(ctx context.Context, id uint) (*model.PersonalAccessToken, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "TokenFindByID")

	var token model.PersonalAccessToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to find token").
			Uint("token_id", id).
			Err(err).
			Log()
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

// DeleteForUser deletes the token only if userID owns it.
func (r *TokenRepository) DeleteForUser(ctx context.Context, userID, id uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

func (r *TokenRepository) DeleteAllForUserExcept(ctx context.Context, userID, keepID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id <> ?", userID, keepID).
		Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

// ListActive returns unexpired tokens, most recently used first.
func (r *TokenRepository) ListActive(ctx context.Context, userID uint, now time.Time) ([]model.PersonalAccessToken, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "TokenListActive")

	var tokens []model.PersonalAccessToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Order("last_used_at IS NULL, last_used_at DESC, created_at DESC, id DESC").
		Find(&tokens).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list active tokens").
			Uint("user_id", userID).
			Err(err).
			Log()
		return nil, err
	}
	return tokens, nil
}

func (r *TokenRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PersonalAccessToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

func (r *TokenRepository) UpdateExpiry(ctx context.Context, id uint, until time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PersonalAccessToken{}).
		Where("id = ?", id).
		Update("expires_at", until).Error
}

func (r *TokenRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.PersonalAccessToken{}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Count(&n).Error
	return n, err
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

func (r *TokenRepository) CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.PersonalAccessToken{}).
		Where("created_at < ?", cutoff).
		Count(&n).Error
	return n, err
}

func (r *TokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.PersonalAccessToken{})
	return result.RowsAffected, result.Error
}

// OwnersOverLimit lists users holding more than max tokens.
func (r *TokenRepository) OwnersOverLimit(ctx context.Context, max int) ([]OwnerCount, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "OwnersOverLimit")

	var owners []OwnerCount
	err := r.db.WithContext(ctx).
		Model(&model.PersonalAccessToken{}).
		Select("user_id, COUNT(*) AS total").
		Group("user_id").
		Having("COUNT(*) > ?", max).
		Order("user_id").
		Scan(&owners).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to count tokens per owner").
			Err(err).
			Log()
		return nil, err
	}
	return owners, nil
}

// TrimOwner evicts the owner's oldest tokens until at most max remain.
func (r *TokenRepository) TrimOwner(ctx context.Context, userID uint, max int) (int64, error) {
	var evicted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner model.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", userID).
			First(&owner).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		evicted, err = trimOwner(tx, userID, max)
		return err
	})
	return evicted, err
}

// Stats counts all tokens, the expired ones, those used at or after since,
// and the distinct owners.
func (r *TokenRepository) Stats(ctx context.Context, now, since time.Time) (TokenStats, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "TokenStats")

	var stats TokenStats
	db := r.db.WithContext(ctx).Model(&model.PersonalAccessToken{})
	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Count(&stats.Expired).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("last_used_at >= ?", since).
		Count(&stats.UsedSince).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).
		Distinct("user_id").
		Count(&stats.Owners).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to count token owners").
			Err(err).
			Log()
		return stats, err
	}
	return stats, nil
}

// TopOwners returns up to limit users with the most tokens.
func (r *TokenRepository) TopOwners(ctx context.Context, limit int) ([]TopOwner, error) {
	var owners []TopOwner
	err := r.db.WithContext(ctx).
		Table("personal_access_tokens AS t").
		Select("u.id AS user_id, u.email, u.role, COUNT(t.id) AS total").
		Joins("JOIN users u ON u.id = t.user_id AND u.deleted_at IS NULL").
		Group("u.id, u.email, u.role").
		Order("total DESC, u.id").
		Limit(limit).
		Scan(&owners).Error
	return owners, err
}
