package database

import (
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrSeedPasswordMissing is returned when no admin password is configured.
var ErrSeedPasswordMissing = errors.New("SEED_ADMIN_PASSWORD is not set")

// Seed creates the configured admin account when it does not exist yet.
func Seed(db *gorm.DB, cfg config.SeedConfig) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}

	var existing model.User
	result := db.Where("email = ?", email).First(&existing)
	if result.Error == nil {
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	if cfg.AdminPassword == "" {
		return ErrSeedPasswordMissing
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	verified := time.Now().UTC()
	return db.Create(&model.User{
		Name:            cfg.AdminName,
		Email:           email,
		Password:        string(hashedPassword),
		Role:            model.RoleAdmin,
		EmailVerifiedAt: &verified,
	}).Error
}
