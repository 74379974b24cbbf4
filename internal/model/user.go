package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	gorm.Model
	Name                string     `gorm:"column:name;not null"`
	Email               string     `gorm:"column:email;unique;not null"`
	Password            string     `gorm:"column:password;not null"`
	Role                string     `gorm:"column:role;type:varchar(20);default:user;not null"`
	EmailVerifiedAt     *time.Time `gorm:"column:email_verified_at"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;default:0;not null"`
	AccountLockedUntil  *time.Time `gorm:"column:account_locked_until"`
	LastActivity        *time.Time `gorm:"column:last_activity"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LockedAt reports whether the lock is still in force at now. It never mutates.
func (u *User) LockedAt(now time.Time) bool {
	return u.AccountLockedUntil != nil && !now.After(*u.AccountLockedUntil)
}

// LockLapsed reports a lock timestamp that has passed but not yet been cleared.
func (u *User) LockLapsed(now time.Time) bool {
	return u.AccountLockedUntil != nil && now.After(*u.AccountLockedUntil)
}

// IdleExpired reports whether the last activity is older than timeout.
// A user with no recorded activity is never idle-expired.
func (u *User) IdleExpired(now time.Time, timeout time.Duration) bool {
	if u.LastActivity == nil {
		return false
	}
	return u.LastActivity.Before(now.Add(-timeout))
}
