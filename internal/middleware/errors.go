package middleware

import (
	"strconv"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AbortWithError writes the coded error body for err with its mapped status
// and stops the handler chain. Retry-After is set when the error carries one.
func AbortWithError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)
	if status >= 500 {
		logger.ErrorWithContext(c.Request.Context(), "Request failed").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			Err(err).
			Log()
	}

	retryAfter := apperrors.GetRetryAfter(err)
	if retryAfter > 0 {
		c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
	}

	c.AbortWithStatusJSON(status, constants.BuildCodedErrorResponse(
		apperrors.GetErrorMessage(err),
		apperrors.GetErrorCode(err),
		retryAfter,
	))
}
