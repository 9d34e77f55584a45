package middleware

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	srverr "github.com/testsmith/testsmith/cmd/server/internal/error"
)

const receivedKey = "received"

// Received records when the request arrived, read back with ReceivedAt.
func Received(now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			t := now()
			c.Set(receivedKey, t)

			trace.SpanFromContext(c.Request().Context()).SetAttributes(
				attribute.Int64("request.received_ms", t.UnixMilli()),
			)
			return next(c)
		}
	}
}

func ReceivedAt(c echo.Context) (time.Time, error) {
	t, ok := c.Get(receivedKey).(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("received: %w", srverr.ErrTypeAssertMismatch)
	}
	return t, nil
}
