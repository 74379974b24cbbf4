package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	RateLimit   RateLimitConfig
	Security    SecurityConfig
	Token       TokenConfig
	Maintenance MaintenanceConfig
	Seed        SeedConfig
}

type AppConfig struct {
	Name        string        `validate:"required"`
	Environment string        `validate:"oneof=development staging production test"`
	Debug       bool
	Timeout     time.Duration `validate:"gt=0"`
	Port        string        `validate:"required,numeric"`
	LogsPath    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"gt=0"`
	Name            string `validate:"required"`
	User            string `validate:"required"`
	Password        string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig signs the web-session cookie.
type JWTConfig struct {
	Secret     string        `validate:"required,min=16"`
	CookieName string        `validate:"required"`
	SessionTTL time.Duration `validate:"gt=0"`
	Secure     bool
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	Database     int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// RateLimitConfig holds the attempt policies. Decays are whole seconds.
type RateLimitConfig struct {
	Request              int `validate:"gt=0"`
	Duration             int `validate:"gt=0"`
	LoginMaxAttempts     int `validate:"gt=0"`
	LoginDecay           int `validate:"gt=0"`
	RefreshMaxAttempts   int `validate:"gt=0"`
	RefreshDecay         int `validate:"gt=0"`
	UnauthorizedMax      int `validate:"gt=0"`
	UnauthorizedDecay    int `validate:"gt=0"`
	RapidRequestMax      int `validate:"gt=0"`
	RapidRequestDecay    int `validate:"gt=0"`
	RequestPatternWindow int `validate:"gt=0"`
}

type SecurityConfig struct {
	LockThreshold int           `validate:"gt=0"`
	LockDuration  time.Duration `validate:"gt=0"`
	IdleTimeout   time.Duration `validate:"gt=0"`
}

type TokenConfig struct {
	Prefix           string
	MaxPerUser       int           `validate:"gt=0"`
	DefaultTTL       time.Duration `validate:"gt=0"`
	RememberTTL      time.Duration `validate:"gt=0"`
	RefreshThreshold time.Duration `validate:"gt=0"`
	DefaultName      string        `validate:"required"`
	AdminAbilities   []string      `validate:"required,dive,oneof=admin:read admin:write *"`
	// WebTokenName and WebTokenTTL describe the token bound to a web session.
	WebTokenName string        `validate:"required"`
	WebTokenTTL  time.Duration `validate:"gt=0"`
}

type MaintenanceConfig struct {
	Enabled       bool
	Interval      time.Duration `validate:"gt=0"`
	PruneOldDays  int           `validate:"gt=0"`
	PruneExpired  bool
	PruneOld      bool
	EnforceLimits bool
}

type SeedConfig struct {
	AdminName     string
	AdminEmail    string `validate:"omitempty,email"`
	AdminPassword string
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "admin-auth"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
			Timeout:     getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
			LogsPath:    getEnv("LOGS_PATH", "./logs"),
			CORSOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "admin_auth"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getEnvAsDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "default_secret_key_change_in_production"),
			CookieName: getEnv("SESSION_COOKIE", "admin_session"),
			SessionTTL: getEnvAsDuration("SESSION_LIFETIME", 2*time.Hour),
			Secure:     getEnvAsBool("SESSION_SECURE_COOKIE", false),
		},
		RateLimit: RateLimitConfig{
			Request:              getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 1000),
			Duration:             getEnvAsInt("RATE_LIMIT_DURATION", 60),
			LoginMaxAttempts:     getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginDecay:           getEnvAsInt("LOGIN_DECAY_SECONDS", 60),
			RefreshMaxAttempts:   getEnvAsInt("REFRESH_MAX_ATTEMPTS", 10),
			RefreshDecay:         getEnvAsInt("REFRESH_DECAY_SECONDS", 60),
			UnauthorizedMax:      getEnvAsInt("UNAUTHORIZED_MAX_ATTEMPTS", 10),
			UnauthorizedDecay:    getEnvAsInt("UNAUTHORIZED_DECAY_SECONDS", 300),
			RapidRequestMax:      getEnvAsInt("RAPID_REQUEST_MAX", 100),
			RapidRequestDecay:    getEnvAsInt("RAPID_REQUEST_DECAY_SECONDS", 60),
			RequestPatternWindow: getEnvAsInt("REQUEST_PATTERN_WINDOW", 50),
		},
		Security: SecurityConfig{
			LockThreshold: getEnvAsInt("ACCOUNT_LOCK_THRESHOLD", 5),
			LockDuration:  getEnvAsDuration("ACCOUNT_LOCK_DURATION", 5*time.Minute),
			IdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Token: TokenConfig{
			Prefix:           getEnv("TOKEN_PREFIX", "pb_"),
			MaxPerUser:       getEnvAsInt("MAX_TOKENS_PER_USER", 10),
			DefaultTTL:       getEnvAsDuration("TOKEN_EXPIRATION", 7*24*time.Hour),
			RememberTTL:      getEnvAsDuration("TOKEN_REMEMBER_EXPIRATION", 30*24*time.Hour),
			RefreshThreshold: getEnvAsDuration("TOKEN_REFRESH_THRESHOLD", 2*time.Hour),
			DefaultName:      getEnv("TOKEN_DEFAULT_NAME", "admin-token"),
			AdminAbilities:   getEnvAsSlice("TOKEN_ADMIN_ABILITIES", []string{"admin:read", "admin:write"}),
			WebTokenName:     getEnv("TOKEN_WEB_NAME", "web-token"),
			WebTokenTTL:      getEnvAsDuration("TOKEN_WEB_EXPIRATION", 30*24*time.Hour),
		},
		Maintenance: MaintenanceConfig{
			Enabled:       getEnvAsBool("MAINTENANCE_ENABLED", true),
			Interval:      getEnvAsDuration("MAINTENANCE_INTERVAL", 24*time.Hour),
			PruneOldDays:  getEnvAsInt("MAINTENANCE_PRUNE_OLD_DAYS", 30),
			PruneExpired:  getEnvAsBool("MAINTENANCE_PRUNE_EXPIRED", true),
			PruneOld:      getEnvAsBool("MAINTENANCE_PRUNE_OLD", false),
			EnforceLimits: getEnvAsBool("MAINTENANCE_ENFORCE_LIMITS", true),
		},
		Seed: SeedConfig{
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@shop.local"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct tags on every section.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Seconds converts a whole-second config value into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
