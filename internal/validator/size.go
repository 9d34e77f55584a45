package validator

import (
	"github.com/go-playground/validator/v10"
)

// MaxContentSize bounds a single file snapshot.
const MaxContentSize = 1 << 20

// ensures a file snapshot's content fits within the snapshot limit
func ValidateContentSize(dataLen int) bool {
	return dataLen <= MaxContentSize
}

func validateContentSize(fl validator.FieldLevel) bool {
	return ValidateContentSize(fl.Field().Len())
}
