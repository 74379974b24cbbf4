package model

import (
	"slices"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	"gorm.io/datatypes"
)

// PersonalAccessToken is a bearer credential ("device") owned by one user.
// Rows are hard-deleted on revocation.
type PersonalAccessToken struct {
	ID         uint                        `gorm:"primarykey"`
	UserID     uint                        `gorm:"column:user_id;not null;index:idx_pat_user_expires,priority:1;index:idx_pat_user_last_used,priority:1"`
	User       *User                       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Name       string                      `gorm:"column:name;not null"`
	TokenHash  string                      `gorm:"column:token;type:varchar(64);uniqueIndex;not null"`
	Abilities  datatypes.JSONSlice[string] `gorm:"column:abilities"`
	LastUsedAt *time.Time                  `gorm:"column:last_used_at;index:idx_pat_user_last_used,priority:2"`
	ExpiresAt  *time.Time                  `gorm:"column:expires_at;index:idx_pat_user_expires,priority:2"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (PersonalAccessToken) TableName() string {
	return "personal_access_tokens"
}

// Can reports whether the token carries ability, honouring the "*" wildcard.
func (t *PersonalAccessToken) Can(ability string) bool {
	return slices.Contains(t.Abilities, constants.AbilityWildcard) || slices.Contains(t.Abilities, ability)
}

// ExpiredAt reports whether the token has passed its expiry. Tokens without
// an expiry never expire.
func (t *PersonalAccessToken) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
