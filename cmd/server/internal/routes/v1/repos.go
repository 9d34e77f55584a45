package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/testsmith/testsmith/cmd/server/internal/response"
	"github.com/testsmith/testsmith/internal/types"
	"github.com/testsmith/testsmith/internal/validator"
)

func (h *Handler) ListRepositories(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListRepositories")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}
	span.SetAttributes(attribute.String("principal", p.ID.String()))

	span.AddEvent("listing repositories")
	repos, err := h.orchestrator.ListRepositories(ctx, p)
	if err != nil {
		return stageError(c, span, err)
	}

	span.SetAttributes(attribute.Int("repositories.count", len(repos)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, repos)
}

func (h *Handler) ListFiles(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListFiles")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}

	owner := c.Param("owner")
	repo := c.Param("repo")

	var (
		path  string
		depth int
	)
	span.AddEvent("parsing query parameters")
	err = echo.QueryParamsBinder(c).
		String("path", &path).
		Int("depth", &depth).
		BindError()
	if err != nil || depth < 0 {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to parse query parameters")
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.Error{Message: "validation error", Fields: &map[string]string{
				"depth": "must be a non-negative integer",
			}},
		)
	}

	if path != "" && !validator.SafePath(path) {
		span.SetStatus(codes.Ok, "rejected path outside repository")
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.Error{Message: "validation error", Fields: &map[string]string{
				"path": "must be a relative path inside the repository",
			}},
		)
	}

	span.SetAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.String("repository", owner+"/"+repo),
		attribute.String("path", path),
		attribute.Int("depth", depth),
	)

	span.AddEvent("listing files")
	files, err := h.orchestrator.ListFiles(ctx, p, owner, repo, path, depth)
	if err != nil {
		return stageError(c, span, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, files)
}

func (h *Handler) ReadFiles(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ReadFiles")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}

	owner := c.Param("owner")
	repo := c.Param("repo")

	var rdata types.ReadFilesRequest

	if err := bindAndValidate(c, span, &rdata); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.String("repository", owner+"/"+repo),
		attribute.Int("paths.count", len(rdata.Paths)),
	)

	span.AddEvent("reading files")
	files, err := h.orchestrator.ReadFiles(ctx, p, owner, repo, rdata.Paths)
	if err != nil {
		return stageError(c, span, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.ReadFilesResponse{Files: files})
}
