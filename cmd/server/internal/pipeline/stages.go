package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/internal/audit"
	"github.com/testsmith/testsmith/internal/generation"
	"github.com/testsmith/testsmith/internal/identifier"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

const generateConcurrency = 3

// StartSummaryStage creates a job for files and proposes test summaries for
// it. Every call creates a new job.
func (o *Orchestrator) StartSummaryStage(
	ctx context.Context,
	p Principal,
	repo types.Repository,
	files []types.FileSnapshot,
) (*models.TestJob, error) {
	ctx, span := tracer.Start(ctx, "StartSummaryStage", trace.WithAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.String("repository", repo.FullNameOrDefault()),
		attribute.Int("files.count", len(files)),
	))
	defer span.End()

	if len(files) == 0 {
		span.RecordError(ErrNoFiles)
		span.SetStatus(codes.Error, "no files")
		return nil, ErrNoFiles
	}
	if repo.Owner == "" || repo.Name == "" {
		span.RecordError(ErrInvalidRepository)
		span.SetStatus(codes.Error, "invalid repository")
		return nil, ErrInvalidRepository
	}
	repo.FullName = repo.FullNameOrDefault()

	job := &models.TestJob{
		OwnerID:    p.ID,
		Status:     types.JobStatusPending,
		Repository: repo,
		Files:      snapshotLanguages(files),
	}
	if err := transition(job, types.JobStatusProcessing); err != nil {
		return nil, err
	}

	if err := o.store.Create(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create job")
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	span.SetAttributes(attribute.String("jobID", job.ID.String()))

	auditCtx := auditContext(p, job)
	audit.LogJobCreated(auditCtx, len(job.Files))

	proposal := o.generator.ProposeSummaries(ctx, job.Files)
	summaries := generation.AssignSummaryIDs(proposal.Summaries, o.now())
	if proposal.Origin == generation.OriginFallback {
		logger.Logger.InfoContext(ctx, "summaries proposed by fallback",
			"job_id", job.ID,
			"reason", proposal.FallbackReason,
		)
	}

	err := o.update(ctx, job, func(j *models.TestJob) (bool, error) {
		j.Summaries = append(j.Summaries, summaries...)
		j.SummaryOrigin = string(proposal.Origin)
		return true, transition(j, types.JobStatusCompleted)
	})
	if err != nil {
		o.markFailed(ctx, job, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store summaries")
		return nil, err
	}

	audit.LogSummariesProposed(auditCtx, string(proposal.Origin), len(summaries))

	span.SetAttributes(
		attribute.Int("summaries.count", len(summaries)),
		attribute.String("origin", string(proposal.Origin)),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "proposed summaries")
	return job, nil
}

// markFailed records that the summary stage could not finish. It only logs
// when that write fails too.
func (o *Orchestrator) markFailed(ctx context.Context, job *models.TestJob, cause error) {
	err := o.update(ctx, job, func(j *models.TestJob) (bool, error) {
		if j.Status == types.JobStatusFailed {
			return false, nil
		}
		return true, transition(j, types.JobStatusFailed)
	})
	if err != nil {
		logger.Logger.ErrorContext(ctx, "failed to mark job failed",
			"job_id", job.ID,
			"cause", cause,
			"error", err,
		)
	}
}

// RunCodeStage generates one test artifact for each selected summary and
// appends them to the job. Unknown summary ids are skipped. Repeating a call
// appends new artifacts next to the earlier ones.
func (o *Orchestrator) RunCodeStage(
	ctx context.Context,
	p Principal,
	jobID uuid.UUID,
	summaryIDs []string,
) ([]types.CodeArtifact, error) {
	ctx, span := tracer.Start(ctx, "RunCodeStage", trace.WithAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.String("jobID", jobID.String()),
		attribute.StringSlice("summaryIDs", summaryIDs),
	))
	defer span.End()

	if len(summaryIDs) == 0 {
		span.RecordError(ErrNoValidSummaries)
		span.SetStatus(codes.Error, "no summaries selected")
		return nil, ErrNoValidSummaries
	}

	job, err := o.load(ctx, p.ID, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load job")
		return nil, err
	}

	selected := resolveSummaries(job, summaryIDs)
	if len(selected) == 0 {
		span.RecordError(ErrNoValidSummaries)
		span.SetStatus(codes.Error, "no summaries resolved")
		return nil, ErrNoValidSummaries
	}
	if !job.Status.CanTransition(types.JobStatusCompleted) {
		err := fmt.Errorf("%w: cannot generate code for a %s job", ErrInvalidTransition, job.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, "job cannot generate code")
		return nil, err
	}

	generated, err := o.generateAll(ctx, job.Files, selected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate code")
		return nil, err
	}

	var appended []types.CodeArtifact
	err = o.update(ctx, job, func(j *models.TestJob) (bool, error) {
		appended = appended[:0]
		for _, g := range generated {
			// a summary removed since the job was read must not gain orphaned code
			if j.SummaryIndex(g.Artifact.SummaryID) < 0 {
				continue
			}
			appended = append(appended, g.Artifact)
		}
		if len(appended) == 0 {
			return false, nil
		}

		j.GeneratedCode = append(j.GeneratedCode, appended...)
		return true, transition(j, types.JobStatusCompleted)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store generated code")
		return nil, err
	}

	stored := make(map[string]struct{}, len(appended))
	for _, a := range appended {
		stored[a.ID] = struct{}{}
	}

	auditCtx := auditContext(p, job)
	for _, g := range generated {
		if _, ok := stored[g.Artifact.ID]; !ok {
			continue
		}
		audit.LogCodeGenerated(
			auditCtx,
			g.Artifact.SummaryID,
			g.Artifact.ID,
			g.Artifact.Filename,
			g.Artifact.Framework,
			string(g.Origin),
		)
	}
	o.archive(ctx, auditCtx, appended)

	span.SetAttributes(attribute.Int("artifacts.count", len(appended)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "generated code")
	return appended, nil
}

// resolveSummaries returns the job's summaries named by ids, in request order, each at most once.
func resolveSummaries(job *models.TestJob, ids []string) []types.Summary {
	seen := make(map[string]struct{}, len(ids))
	selected := make([]types.Summary, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		idx := job.SummaryIndex(id)
		if idx < 0 {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, job.Summaries[idx])
	}
	return selected
}

func (o *Orchestrator) generateAll(
	ctx context.Context,
	files []types.FileSnapshot,
	summaries []types.Summary,
) ([]generation.Generated, error) {
	results := make([]generation.Generated, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(generateConcurrency)
	for i, summary := range summaries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.generator.GenerateCode(gctx, files, summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("code generation interrupted: %w", err)
	}

	return results, nil
}

// archive copies artifacts to object storage when an archiver is configured. Failures are logged only.
func (o *Orchestrator) archive(ctx context.Context, auditCtx audit.Context, artifacts []types.CodeArtifact) {
	if o.archiver == nil {
		return
	}
	for _, artifact := range artifacts {
		if err := o.archiver.ArchiveArtifact(ctx, auditCtx, artifact); err != nil {
			logger.Logger.WarnContext(ctx, "failed to archive generated test",
				"artifact_id", artifact.ID,
				"filename", artifact.Filename,
				"error", err,
			)
		}
	}
}

// snapshotLanguages fills in missing languages so the stored snapshot is self describing.
func snapshotLanguages(files []types.FileSnapshot) []types.FileSnapshot {
	out := make([]types.FileSnapshot, len(files))
	for i, f := range files {
		out[i] = f
		if f.Language == "" {
			out[i].Language = identifier.GetLanguage(f.Path, []byte(f.Content)).String()
		}
	}
	return out
}
