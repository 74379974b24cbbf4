package dto

import (
	"time"

	"github.com/Payphone-Digital/adminauth/internal/model"
)

type LoginRequest struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required,max=255"`
	DeviceName string `json:"device_name" binding:"omitempty,max=255"`
	RememberMe bool   `json:"remember_me"`
}

type UserView struct {
	ID              uint       `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	LastActivity    *time.Time `json:"last_activity"`
	CreatedAt       time.Time  `json:"created_at"`
}

func NewUserView(user *model.User) UserView {
	return UserView{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		EmailVerifiedAt: user.EmailVerifiedAt,
		LastActivity:    user.LastActivity,
		CreatedAt:       user.CreatedAt,
	}
}

type LoginResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresAt *time.Time `json:"expires_at"`
	Abilities []string   `json:"abilities"`
	User      UserView   `json:"user"`
}

// WebLoginResponse is returned to the cookie surface; the session id
// travels in the cookie only.
type WebLoginResponse struct {
	User UserView `json:"user"`
}

type RefreshResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// DeviceSummary describes one bearer token without its secret.
type DeviceSummary struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Abilities  []string   `json:"abilities"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	Current    bool       `json:"current"`
}

type RevokeResponse struct {
	Revoked int64 `json:"revoked"`
}

// MaintenanceReport carries one count per sweep that ran. Counts are what
// would be deleted when DryRun is set.
type MaintenanceReport struct {
	DryRun         bool   `json:"dry_run"`
	Expired        *int64 `json:"expired,omitempty"`
	Old            *int64 `json:"old,omitempty"`
	OlderThanDays  int    `json:"older_than_days,omitempty"`
	OverLimit      *int64 `json:"over_limit,omitempty"`
	MaxPerUser     int    `json:"max_per_user,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

type TokenOwner struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Tokens int64  `json:"tokens"`
}

type TokenStatistics struct {
	Total      int64        `json:"total"`
	Active     int64        `json:"active"`
	Expired    int64        `json:"expired"`
	UsedToday  int64        `json:"used_today"`
	Owners     int64        `json:"owners"`
	TopOwners  []TokenOwner `json:"top_owners"`
	MaxPerUser int          `json:"max_per_user"`
}
