package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Name     string `validate:"max=3"`
}

func TestMessages(t *testing.T) {
	v := validator.New()

	err := v.Struct(loginForm{Email: "nope", Name: "toolong"})
	msgs := Messages(err)

	assert.Equal(t, []string{
		"email must be a valid address",
		"password is required",
		"name may not be greater than 3",
	}, msgs)
}

func TestMessagesPassesThroughOtherErrors(t *testing.T) {
	assert.Equal(t, []string{"boom"}, Messages(errors.New("boom")))
}
