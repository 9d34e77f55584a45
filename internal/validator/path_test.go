package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafePath(t *testing.T) {
	for _, p := range []string{"app.js", "src/calc.py", "./README.md", "a/b/../c.go"} {
		assert.True(t, SafePath(p), p)
	}
	for _, p := range []string{"", "/etc/passwd", "../secret", "src/../../x", `src\calc.py`} {
		assert.False(t, SafePath(p), p)
	}
}

func TestSafePathTag(t *testing.T) {
	type request struct {
		Paths []string `json:"paths" validate:"required,dive,required,safe_path"`
	}

	v := Create()
	require.NoError(t, v.Validate(request{Paths: []string{"src/calc.py"}}))

	err := v.Validate(request{Paths: []string{"app.js", "../../etc/passwd"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safe_path")
}
