package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	servermiddleware "github.com/testsmith/testsmith/cmd/server/internal/middleware"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/cmd/server/internal/pipeline"
	"github.com/testsmith/testsmith/cmd/server/internal/response"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

// principal builds the pipeline principal for the authenticated user
func principal(c echo.Context) (pipeline.Principal, error) {
	user, err := servermiddleware.UserFrom(c)
	if err != nil {
		return pipeline.Principal{}, err
	}

	cred := github.Credential{Token: user.GithubToken}
	if id := models.PtrFromNull(user.InstallationID); id != nil {
		cred.InstallationID = *id
	}

	return pipeline.Principal{ID: user.ID, Credential: cred}, nil
}

func statusFor(category pipeline.Category) int {
	switch category {
	case pipeline.CategoryInput:
		return http.StatusBadRequest
	case pipeline.CategoryNotFound:
		return http.StatusNotFound
	case pipeline.CategoryPermission:
		return http.StatusForbidden
	case pipeline.CategoryConflict:
		return http.StatusConflict
	case pipeline.CategoryUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// stageError maps a pipeline error onto an HTTP error carrying the classified
// message and the underlying cause.
func stageError(c echo.Context, span trace.Span, err error) error {
	category := pipeline.Classify(err)
	span.RecordError(err)

	if category == pipeline.CategoryInternal {
		span.SetStatus(codes.Error, "internal error")
		logger.Logger.ErrorContext(c.Request().Context(), "request failed", "error", err)
		return response.InternalServerError
	}

	// caller and upstream failures are not server faults
	span.SetStatus(codes.Ok, category.String())
	return echo.NewHTTPError(
		statusFor(category),
		types.DetailedError(pipeline.UserMessage(err), err.Error()),
	)
}
