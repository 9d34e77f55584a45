package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type (
	Error struct {
		Fields  *map[string]string `json:"fields,omitempty"  validate:"optional"`
		Message string             `json:"message"           validate:"required"`
		// Underlying cause, returned for diagnostics alongside the classified message.
		Details string `json:"details,omitempty" validate:"optional"`
	}
)

func StringError(err string) Error {
	return Error{Message: err}
}

func DetailedError(message string, details string) Error {
	return Error{Message: message, Details: details}
}

// ValidationError maps validator failures onto a field name to reason map.
// Other errors yield a bare "validation error".
func ValidationError(err error) Error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Error{Message: "validation error"}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields[fieldError.Field()] = describe(fieldError)
	}
	return Error{Message: "validation error", Fields: &fields}
}

func describe(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fieldError.Param())
	case "max":
		return fmt.Sprintf("must have at most %s entries", fieldError.Param())
	case "safe_path":
		return "must be a relative path inside the repository"
	case "content_size":
		return "exceeds the maximum file size"
	default:
		return fmt.Sprintf("failed to validate while checking condition: %s", fieldError.Tag())
	}
}
