package validator

import (
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SafePath reports whether p is a relative path that stays inside the
// repository root.
func SafePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.ContainsRune(p, '\\') {
		return false
	}
	for _, segment := range strings.Split(path.Clean(p), "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}

func validateSafePath(fl validator.FieldLevel) bool {
	return SafePath(fl.Field().String())
}
