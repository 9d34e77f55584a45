package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts go-playground/validator to echo.Validator and
// reports fields by their wire names.
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// fieldName prefers the param tag, then the json tag.
func fieldName(field reflect.StructField) string {
	if name, _, _ := strings.Cut(field.Tag.Get("param"), ","); name != "" {
		return name
	}

	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	default:
		return name
	}
}

func Create() CustomValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(fieldName)

	// registration only fails on an empty tag or nil func
	_ = validate.RegisterValidation("content_size", validateContentSize)
	_ = validate.RegisterValidation("safe_path", validateSafePath)

	return CustomValidator{validator: validate}
}
