package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var customMessages = map[string]map[string]string{
	"Email": {
		"required": "email is required",
		"email":    "email must be a valid address",
		"max":      "email may not be longer than 255 characters",
	},
	"Password": {
		"required": "password is required",
		"max":      "password may not be longer than 255 characters",
	},
	"DeviceName": {
		"max": "device_name may not be longer than 255 characters",
	},
}

// CustomMessage returns the per-tag messages registered for a struct field.
func CustomMessage(field string) map[string]string {
	return customMessages[field]
}

func DefaultMessage(field, tag, param string) string {
	field = strings.ToLower(field)

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s may not be greater than %s", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname":
		return fmt.Sprintf("%s must be a valid hostname", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, tag)
	}
}

// Messages flattens a validator error into user-facing strings. Errors that
// are not validation errors come back as a single message.
func Messages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if custom := CustomMessage(e.Field()); custom != nil {
			if msg, ok := custom[e.Tag()]; ok {
				messages = append(messages, msg)
				continue
			}
		}
		messages = append(messages, DefaultMessage(e.Field(), e.Tag(), e.Param()))
	}
	return messages
}
