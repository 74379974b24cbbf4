package database

import (
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tokenIndexes are partial indexes for the maintenance queries. gorm tags
// cannot express the WHERE clauses, so they are created here on postgres only.
var tokenIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_pat_expires_at ON personal_access_tokens(expires_at) WHERE expires_at IS NOT NULL;",
	"CREATE INDEX IF NOT EXISTS idx_pat_created_at ON personal_access_tokens(created_at);",
	"CREATE INDEX IF NOT EXISTS idx_users_locked_until ON users(account_locked_until) WHERE account_locked_until IS NOT NULL;",
}

// CreateIndexes adds the maintenance indexes. Failures are logged and skipped.
func CreateIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	for _, indexSQL := range tokenIndexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.GetLogger().Warn("Failed to create index",
				zap.String("sql", indexSQL),
				zap.Error(err),
			)
		}
	}
	return nil
}
