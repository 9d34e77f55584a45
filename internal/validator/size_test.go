package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentSize(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, ValidateContentSize(MaxContentSize), "max size should work")
	})

	t.Run("ValidSmall", func(t *testing.T) {
		assert.True(t, ValidateContentSize(10), "small size should work")
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.False(t, ValidateContentSize(MaxContentSize+1), "too big")
	})
}

func TestCustomValidator(t *testing.T) {
	type snapshot struct {
		Path    string `json:"path"    validate:"required"`
		Content string `json:"content" validate:"required,content_size"`
	}

	v := Create()

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, v.Validate(snapshot{Path: "app.js", Content: "let a = 1"}))
	})

	t.Run("TooLarge", func(t *testing.T) {
		err := v.Validate(snapshot{
			Path:    "app.js",
			Content: strings.Repeat("a", MaxContentSize+1),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content_size")
	})

	t.Run("JSONFieldNames", func(t *testing.T) {
		err := v.Validate(snapshot{Content: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "'path'")
	})
}
