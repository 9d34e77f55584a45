package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	servermiddleware "github.com/testsmith/testsmith/cmd/server/internal/middleware"
	"github.com/testsmith/testsmith/cmd/server/internal/response"
	"github.com/testsmith/testsmith/internal/types"
)

// bindAndValidate decodes the request body into rdata and validates it
func bindAndValidate(c echo.Context, span trace.Span, rdata any) error {
	span.AddEvent("parsing request body")
	if err := c.Bind(rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	if err := c.Validate(rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	return nil
}

func (h *Handler) GenerateSummary(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GenerateSummary")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}
	received, err := servermiddleware.ReceivedAt(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.Int64("request.timestamp_ms", received.UnixMilli()),
	)

	var rdata types.SummaryRequest
	if err := bindAndValidate(c, span, &rdata); err != nil {
		return err
	}

	repo := rdata.Repository
	span.SetAttributes(attribute.String("repository", repo.FullNameOrDefault()))

	files := rdata.Files
	if len(files) == 0 {
		span.AddEvent("snapshotting files by path")
		files, err = h.orchestrator.ReadFiles(ctx, p, repo.Owner, repo.Name, rdata.Paths)
		if err != nil {
			return stageError(c, span, err)
		}
	}

	span.AddEvent("starting summary stage")
	job, err := h.orchestrator.StartSummaryStage(ctx, p, repo, files)
	if err != nil {
		return stageError(c, span, err)
	}

	span.SetAttributes(attribute.String("job.id", job.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusCreated, job.ToAPI())
}

func (h *Handler) GenerateCode(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GenerateCode")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}
	span.SetAttributes(attribute.String("principal", p.ID.String()))

	var rdata types.CodeRequest
	if err := bindAndValidate(c, span, &rdata); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("job.id", rdata.TestJobID.String()),
		attribute.StringSlice("summary.ids", rdata.SummaryIDs),
	)

	span.AddEvent("running code stage")
	artifacts, err := h.orchestrator.RunCodeStage(ctx, p, rdata.TestJobID, rdata.SummaryIDs)
	if err != nil {
		return stageError(c, span, err)
	}

	span.SetAttributes(attribute.Int("artifacts.count", len(artifacts)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.CodeResponse{
		TestJobID:     rdata.TestJobID,
		GeneratedCode: artifacts,
	})
}

func (h *Handler) GeneratePullRequest(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GeneratePullRequest")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}
	span.SetAttributes(attribute.String("principal", p.ID.String()))

	var rdata types.PullRequestRequest
	if err := bindAndValidate(c, span, &rdata); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("job.id", rdata.TestJobID.String()),
		attribute.StringSlice("refs", rdata.GeneratedCodeIDs),
	)

	span.AddEvent("running publish stage")
	result, err := h.orchestrator.PublishStage(ctx, p, rdata.TestJobID, rdata.GeneratedCodeIDs)
	if err != nil {
		return stageError(c, span, err)
	}

	span.SetAttributes(attribute.String("pull_request.url", result.URL))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, types.PullRequestResponse{
		PullRequestURL: result.URL,
		Branch:         result.Branch,
		CommittedFiles: result.Committed,
		FailedFiles:    result.Failed,
	})
}
