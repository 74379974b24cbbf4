package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code       string
	Message    string
	RetryAfter int   // seconds; set on THROTTLED and ACCOUNT_LOCKED
	Err        error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:       domainErr.Code,
		Message:    domainErr.Message,
		RetryAfter: domainErr.RetryAfter,
		Err:        err,
	}
}

// WithRetryAfter returns a copy of domainErr telling clients how many
// seconds to back off.
func WithRetryAfter(domainErr *DomainError, seconds int) *DomainError {
	return &DomainError{
		Code:       domainErr.Code,
		Message:    domainErr.Message,
		RetryAfter: seconds,
		Err:        domainErr.Err,
	}
}

// Predefined domain errors
var (
	// Login
	ErrThrottled          = NewDomainError("THROTTLED", "too many login attempts")
	ErrAccountLocked      = NewDomainError("ACCOUNT_LOCKED", "account is temporarily locked")
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "the provided credentials are incorrect")
	ErrForbidden          = NewDomainError("FORBIDDEN", "access denied: admin privileges required")

	// Per-request authorization
	ErrUnauthenticated        = NewDomainError("UNAUTHENTICATED", "authentication required")
	ErrInvalidToken           = NewDomainError("INVALID_TOKEN", "invalid or expired token")
	ErrTokenExpired           = NewDomainError("EXPIRED", "token has expired")
	ErrSessionExpired         = NewDomainError("SESSION_EXPIRED", "session expired due to inactivity")
	ErrInsufficientPrivileges = NewDomainError("INSUFFICIENT_PRIVILEGES", "admin access required")
	ErrMissingAbility         = NewDomainError("MISSING_ABILITY", "token lacks the required ability")

	// Token lifecycle
	ErrNotYetNeeded = NewDomainError("NOT_YET_NEEDED", "token refresh not needed yet")
	ErrUnsupported  = NewDomainError("UNSUPPORTED", "operation not supported for session authentication")
	ErrNotFound     = NewDomainError("NOT_FOUND", "device not found")

	// Validation errors
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "invalid input")

	// System errors
	ErrInternal           = NewDomainError("INTERNAL_ERROR", "internal server error")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// Internal wraps a storage or infrastructure failure. The cause is kept for
// logs and never shown to clients.
func Internal(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return WrapError(ErrInternal, err)
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

// domainErrorToHTTPStatus maps specific domain errors to HTTP status codes
func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "INVALID_INPUT", "NOT_YET_NEEDED", "UNSUPPORTED":
		return http.StatusBadRequest

	// 401 Unauthorized
	case "UNAUTHENTICATED", "INVALID_CREDENTIALS", "INVALID_TOKEN",
		"EXPIRED", "SESSION_EXPIRED":
		return http.StatusUnauthorized

	// 403 Forbidden
	case "FORBIDDEN", "INSUFFICIENT_PRIVILEGES", "MISSING_ABILITY":
		return http.StatusForbidden

	// 404 Not Found
	case "NOT_FOUND":
		return http.StatusNotFound

	// 423 Locked
	case "ACCOUNT_LOCKED":
		return http.StatusLocked

	// 429 Too Many Requests
	case "THROTTLED":
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage safely extracts error message
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return err.Error()
}

// GetErrorCode returns the domain code, or INTERNAL_ERROR for anything else.
func GetErrorCode(err error) string {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ErrInternal.Code
}

// GetRetryAfter returns the back-off hint in seconds, zero when absent.
func GetRetryAfter(err error) int {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.RetryAfter
	}
	return 0
}
