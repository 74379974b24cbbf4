package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ValidationMiddleware struct {
	validate *validator.Validate
}

// NewValidationMiddleware validates against the same `binding` tags gin uses.
func NewValidationMiddleware() *ValidationMiddleware {
	validate := validator.New()
	validate.SetTagName("binding")
	return &ValidationMiddleware{validate: validate}
}

// ValidateRequestBody decodes the JSON body into a fresh value from factory,
// validates it and stores it for the handler under GinKeyRequest.
func (m *ValidationMiddleware) ValidateRequestBody(factory func() any) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		request := factory()

		// an empty body decodes to the zero value and fails validation instead
		if err := json.NewDecoder(c.Request.Body).Decode(request); err != nil && !errors.Is(err, io.EOF) {
			logger.WarnWithContext(ctx, "Middleware: JSON decoding failed").
				String("path", c.Request.URL.Path).
				Err(err).
				Log()
			response := constants.BuildErrorResponse("Invalid JSON body", err.Error())
			response[constants.ResponseFieldErrorCode] = "INVALID_INPUT"
			c.AbortWithStatusJSON(http.StatusBadRequest, response)
			return
		}

		if err := m.validate.Struct(request); err != nil {
			messages := validation.Messages(err)
			logger.WarnWithContext(ctx, "Middleware: Request validation failed").
				String("path", c.Request.URL.Path).
				Strings("validation_errors", messages).
				Log()
			response := constants.BuildErrorResponse("Validation failed", messages)
			response[constants.ResponseFieldErrorCode] = "INVALID_INPUT"
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response)
			return
		}

		c.Set(constants.GinKeyRequest, request)
		c.Next()
	}
}
