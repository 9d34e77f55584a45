package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redact}))

	l.Info("calling host", "github_token", "ghp_secret", "Token", "abc", "repository", "octo/widgets")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, redacted, line["github_token"])
	assert.Equal(t, redacted, line["Token"])
	assert.Equal(t, "octo/widgets", line["repository"])
	assert.NotContains(t, buf.String(), "ghp_secret")
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { LogLevel.Set(slog.LevelDebug) })

	SetLevel(int(slog.LevelWarn))
	assert.Equal(t, slog.LevelWarn, LogLevel.Level())
}
