package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aatuh/shield/envvar"
	"github.com/aatuh/shield/ports"
	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error with field-specific details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

type playgroundValidator struct {
	validator *validator.Validate
}

// New returns a validator backed by go-playground/validator. Field names
// come from the env tag, then the json tag, then the Go name.
func New() ports.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"env", "json"} {
			name := strings.Split(fld.Tag.Get(key), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &playgroundValidator{validator: v}
}

func (p *playgroundValidator) ValidateStruct(ctx context.Context, obj interface{}) error {
	if obj == nil {
		return ValidationError{Message: "object is required"}
	}
	return convertError(p.validator.StructCtx(ctx, obj))
}

func convertError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	errs := ValidationErrors{}
	for _, fe := range ve {
		e := ValidationError{Field: fe.Field(), Message: buildMessage(fe)}
		if !envvar.IsSecretName(fe.Field()) {
			e.Value = fmt.Sprintf("%v", fe.Value())
		}
		errs.Errors = append(errs.Errors, e)
	}
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs
}

func buildMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed '%s'=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}
