package logger

import (
	"log/slog"
	"os"
	"strings"

	slogotel "github.com/remychantenay/slog-otel"
)

const redacted = "[REDACTED]"

// attribute keys whose values are credentials
var secretKeys = map[string]bool{
	"token":         true,
	"github_token":  true,
	"api_key":       true,
	"authorization": true,
	"password":      true,
}

var LogLevel = new(slog.LevelVar)

// redact replaces credential values so a stray attribute never reaches the sink.
func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

var jsonHandler = slog.NewJSONHandler(
	os.Stderr,
	&slog.HandlerOptions{AddSource: true, Level: LogLevel, ReplaceAttr: redact},
)
var sloghandler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))
var Handler = sloghandler(jsonHandler)
var Logger = slog.New(Handler)

func InitSlog() {
	slog.SetDefault(Logger)
	LogLevel.Set(slog.LevelDebug)
}

// SetLevel applies a configured numeric slog level.
func SetLevel(level int) {
	LogLevel.Set(slog.Level(level))
}
