package constants

// HTTP Header Names
const (
	HeaderAuthorization      = "Authorization"
	HeaderOrigin             = "Origin"
	HeaderXRequestID         = "X-Request-ID"
	HeaderXForwardedFor      = "X-Forwarded-For"
	HeaderXRealIP            = "X-Real-IP"
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

const (
	MsgInternalError = "Internal server error"
	MsgSuccess       = "Operation completed successfully"
	MsgLoggedOut     = "Logged out successfully"
	MsgDeviceRevoked = "Device revoked successfully"
)
