package types_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testsmith/testsmith/internal/types"
	"github.com/testsmith/testsmith/internal/validator"
)

func TestValidationError(t *testing.T) {
	v := validator.Create()

	t.Run("FieldErrors", func(t *testing.T) {
		err := v.Validate(types.ReadFilesRequest{Paths: []string{"app.js", "../etc/passwd"}})
		require.Error(t, err)

		body := types.ValidationError(err)
		assert.Equal(t, "validation error", body.Message)
		require.NotNil(t, body.Fields)
		assert.Equal(t, "must be a relative path inside the repository", (*body.Fields)["paths[1]"])
	})

	t.Run("Missing", func(t *testing.T) {
		body := types.ValidationError(v.Validate(types.ReadFilesRequest{}))
		require.NotNil(t, body.Fields)
		assert.Equal(t, "is required", (*body.Fields)["paths"])
	})

	t.Run("NotAValidationError", func(t *testing.T) {
		body := types.ValidationError(errors.New("boom"))
		assert.Equal(t, "validation error", body.Message)
		assert.Nil(t, body.Fields)
	})
}
