package constants

// Application Information
const (
	AppName    = "Admin Auth Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Token abilities
const (
	AbilityAdminRead  = "admin:read"
	AbilityAdminWrite = "admin:write"
	AbilityWebAccess  = "web:access"
	AbilityWildcard   = "*"
)

const TokenTypeBearer = "Bearer"

// KnownAbilities lists every ability a token may be issued with.
var KnownAbilities = []string{AbilityAdminRead, AbilityAdminWrite, AbilityWebAccess, AbilityWildcard}

// SessionKeyToken holds the plain-text token bound to a web session.
const SessionKeyToken = "sanctum_token"

// Cache Key Prefixes
const (
	CacheKeyLogin           = "login:"
	CacheKeyRefresh         = "refresh:"
	CacheKeyAPI             = "api:"
	CacheKeyUnauthorized    = "unauthorized_attempts:"
	CacheKeyTokenUsage      = "token_usage:"
	CacheKeyRequestPatterns = "request_patterns:"
	CacheKeyUserLastIP      = "user_last_ip:"
	CacheKeyUserLastAgent   = "user_last_agent:"
	CacheKeyRapidRequests   = "rapid_requests:"
	CacheKeySession         = "session:"
	TokenUsageHourLayout    = "2006-01-02-15"
)

// SessionCleanupKeys are removed from a web session on logout.
var SessionCleanupKeys = []string{
	SessionKeyToken,
	"cart",
	"user_preferences",
	"temp_data",
	"last_activity",
	"shopping_session",
}

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
