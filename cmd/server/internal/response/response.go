package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/testsmith/testsmith/internal/types"
)

var (
	InternalServerError = echo.NewHTTPError(
		http.StatusInternalServerError,
		types.StringError("something went wrong"),
	)
	NotFoundError     = echo.NewHTTPError(http.StatusNotFound, types.StringError("not found"))
	UnauthorizedError = echo.NewHTTPError(http.StatusUnauthorized, types.StringError("Unauthorized"))
	RateLimitedError  = echo.NewHTTPError(
		http.StatusTooManyRequests,
		types.StringError("rate limit exceeded, retry in a minute"),
	)
)
