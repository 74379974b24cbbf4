package middleware

import (
	"context"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextMiddleware tags the request context with a request id, the client
// address and a timeout, and logs the start and end of every request.
func ContextMiddleware(module string, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(constants.HeaderXRequestID, requestID)

		ctx := ctxutil.WithRequest(c.Request.Context(), requestID, c.ClientIP(), c.Request.UserAgent())
		ctx = ctxutil.WithFunction(ctx, module, c.FullPath())

		var cancel context.CancelFunc = func() {}
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		logger.DebugWithContext(ctx, "Request started").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			String("query", c.Request.URL.RawQuery).
			Log()

		c.Next()

		// the auth middleware may have attached a user id further down
		logger.InfoWithContext(c.Request.Context(), "Request completed").
			String("method", c.Request.Method).
			String("path", c.Request.URL.Path).
			Int("status_code", c.Writer.Status()).
			Int("response_size", c.Writer.Size()).
			Duration(ctxutil.GetDuration(ctx)).
			Log()
	}
}
