package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=debug info"`
	AppKey string `env:"APP_KEY" validate:"required,min=16"`
	Port   int    `json:"port" validate:"min=1"`
}

func TestValidateStruct(t *testing.T) {
	v := New()
	require.NoError(t, v.ValidateStruct(context.Background(), sample{Level: "info", AppKey: "0123456789abcdef", Port: 1}))

	err := v.ValidateStruct(context.Background(), sample{Level: "trace", AppKey: "short", Port: 1})
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs.Errors, 2)
	assert.Equal(t, ValidationError{Field: "LOG_LEVEL", Message: "must be one of [debug info]", Value: "trace"}, errs.Errors[0])
	assert.Equal(t, ValidationError{Field: "APP_KEY", Message: "must be at least 16"}, errs.Errors[1])
}

func TestSingleError(t *testing.T) {
	err := New().ValidateStruct(context.Background(), sample{Level: "info", AppKey: "0123456789abcdef"})
	var e ValidationError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "port: must be at least 1", e.Error())
}

func TestNilObject(t *testing.T) {
	assert.EqualError(t, New().ValidateStruct(context.Background(), nil), "object is required")
}
