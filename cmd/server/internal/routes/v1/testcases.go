package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/testsmith/testsmith/cmd/server/internal/error"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/cmd/server/internal/pipeline"
	"github.com/testsmith/testsmith/cmd/server/internal/response"
	"github.com/testsmith/testsmith/internal/types"
)

func (h *Handler) ListTestJobs(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListTestJobs")
	defer span.End()

	p, err := principal(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response.InternalServerError
	}

	limit := pipeline.DefaultJobListLimit
	span.AddEvent("parsing query parameters")
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to parse limit")
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.Error{Message: "validation error", Fields: &map[string]string{
				"limit": "must be an integer",
			}},
		)
	}

	span.SetAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.Int("limit", limit),
	)

	span.AddEvent("listing jobs")
	jobs, err := h.orchestrator.ListJobs(ctx, p, limit)
	if err != nil {
		return stageError(c, span, err)
	}

	out := make([]types.TestJob, len(jobs))
	for i := range jobs {
		out[i] = jobs[i].ToAPI()
	}

	span.SetAttributes(attribute.Int("jobs.count", len(out)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetTestJob(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "GetTestJob")
	defer span.End()

	job, ok := c.Get(jobContextKey).(*models.TestJob)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("job: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.status", string(job.Status)),
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "")
	return c.JSON(http.StatusOK, job.ToAPI())
}
