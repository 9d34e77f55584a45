package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	servermiddleware "github.com/testsmith/testsmith/cmd/server/internal/middleware"
	"github.com/testsmith/testsmith/internal/validator"
)

// Bound on request bodies. File snapshots dominate; fifty files of the maximum size fit.
const bodyLimit = "64M"

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		middleware.RequestID(),
		otelecho.Middleware("testsmith"),
		slogecho.NewWithConfig(logger, slogecho.Config{
			WithRequestID: true,
			WithSpanID:    true,
			WithTraceID:   true,
		}),
		middleware.BodyLimit(bodyLimit),
		servermiddleware.Received(time.Now),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e, nil
}
