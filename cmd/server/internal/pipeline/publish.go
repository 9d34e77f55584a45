package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/internal/audit"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

const (
	assumedDefaultBranch  = "main"
	fallbackDefaultBranch = "master"
	readmeFilename        = "README.md"
	readmeCommitMessage   = "Add generated tests README"
)

type PublishResult struct {
	URL    string
	Branch string
	// Branch the pull request targets
	Base      string
	Committed []string
	Failed    []string
}

// committedFile is an artifact that reached the publication branch.
type committedFile struct {
	Path     string
	Artifact types.CodeArtifact
}

// PublishStage commits the selected artifacts to a new branch and opens a
// pull request for them. refs name artifact ids or summary ids; empty refs
// publish every artifact on the job. Every call opens a new pull request.
func (o *Orchestrator) PublishStage(
	ctx context.Context,
	p Principal,
	jobID uuid.UUID,
	refs []string,
) (*PublishResult, error) {
	ctx, span := tracer.Start(ctx, "PublishStage", trace.WithAttributes(
		attribute.String("principal", p.ID.String()),
		attribute.String("jobID", jobID.String()),
		attribute.StringSlice("refs", refs),
	))
	defer span.End()

	job, err := o.load(ctx, p.ID, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load job")
		return nil, err
	}

	artifacts := resolveArtifacts(job, refs)
	if len(artifacts) == 0 {
		span.RecordError(ErrNoGeneratedCode)
		span.SetStatus(codes.Error, "no artifacts resolved")
		return nil, ErrNoGeneratedCode
	}
	span.SetAttributes(attribute.Int("artifacts.count", len(artifacts)))

	client, err := o.client(p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no repository host client")
		return nil, err
	}

	auditCtx := auditContext(p, job)

	result, err := o.publish(ctx, client, job.Repository, artifacts)
	if err != nil {
		step := StepDone
		var pubErr *PublishError
		if errors.As(err, &pubErr) {
			step = pubErr.Step
		}
		audit.LogPullRequestFailed(auditCtx, string(step), err.Error())

		span.RecordError(err)
		span.SetStatus(codes.Error, "publication aborted")
		return nil, err
	}

	record := types.PublishedPullRequest{
		URL:       result.URL,
		Branch:    result.Branch,
		Files:     result.Committed,
		CreatedAt: o.now().UTC(),
	}
	err = o.update(ctx, job, func(j *models.TestJob) (bool, error) {
		j.PullRequests = append(j.PullRequests, record)
		return true, nil
	})
	if err != nil {
		// the pull request exists; losing the record must not hide it from the caller
		logger.Logger.ErrorContext(ctx, "failed to record published pull request",
			"job_id", job.ID,
			"url", result.URL,
			"error", err,
		)
	}

	audit.LogPullRequestOpened(auditCtx, result.URL, result.Branch, result.Committed, result.Failed)

	span.SetAttributes(attribute.String("url", result.URL))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "published")
	return result, nil
}

// resolveArtifacts returns the artifacts named by refs in job order, each at most once.
func resolveArtifacts(job *models.TestJob, refs []string) []types.CodeArtifact {
	if len(refs) == 0 {
		return append([]types.CodeArtifact(nil), job.GeneratedCode...)
	}

	wanted := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		wanted[ref] = struct{}{}
	}

	var out []types.CodeArtifact
	for _, a := range job.GeneratedCode {
		_, byID := wanted[a.ID]
		_, bySummary := wanted[a.SummaryID]
		if byID || bySummary {
			out = append(out, a)
		}
	}
	return out
}

func enter(ctx context.Context, step Step, attrs ...any) {
	trace.SpanFromContext(ctx).AddEvent(string(step))
	logger.Logger.InfoContext(ctx, "publication step", append([]any{"step", step}, attrs...)...)
}

// publish runs the protocol
//
//	ResolveBranch -> ResolveHeadSHA -> CreateBranch -> CommitFiles -> CommitReadme -> OpenPR -> Done
//
// Nothing is rolled back on abort: a created branch stays on the host.
func (o *Orchestrator) publish(
	ctx context.Context,
	client github.Client,
	repo types.Repository,
	artifacts []types.CodeArtifact,
) (*PublishResult, error) {
	ctx, span := tracer.Start(ctx, "publish", trace.WithAttributes(
		attribute.String("repository", repo.FullNameOrDefault()),
	))
	defer span.End()

	owner, name := repo.Owner, repo.Name

	enter(ctx, StepResolveBranch)
	base, err := client.GetDefaultBranch(ctx, owner, name)
	if err != nil || base == "" {
		logger.Logger.WarnContext(ctx, "could not read default branch, assuming main",
			"repository", repo.FullNameOrDefault(),
			"error", err,
		)
		base = assumedDefaultBranch
	}

	enter(ctx, StepResolveHeadSHA, "base", base)
	sha, err := client.GetBranchHeadSHA(ctx, owner, name, base)
	if isNotFound(err) && base != fallbackDefaultBranch {
		logger.Logger.WarnContext(ctx, "branch not found, trying master",
			"branch", base,
			"error", err,
		)
		base = fallbackDefaultBranch
		sha, err = client.GetBranchHeadSHA(ctx, owner, name, base)
	}
	if err != nil {
		failure := FailureHeadSHA
		if isNotFound(err) {
			failure = FailureNoDefaultBranch
		}
		return nil, o.abort(ctx, &PublishError{Step: StepResolveHeadSHA, Failure: failure, Err: err})
	}

	branch := o.branches.next(o.cfg.BranchPrefix)
	enter(ctx, StepCreateBranch, "branch", branch, "from", sha)
	if err := client.CreateBranch(ctx, owner, name, branch, sha); err != nil {
		return nil, o.abort(ctx, &PublishError{Step: StepCreateBranch, Failure: FailureBranchCreate, Err: err})
	}

	enter(ctx, StepCommitFiles, "branch", branch, "files", len(artifacts))
	committed, failed, commitErr := o.commitFiles(ctx, client, repo, branch, artifacts)
	logger.Logger.InfoContext(ctx, "committed generated tests",
		"branch", branch,
		"committed", committedPaths(committed),
		"failed", failed,
	)
	if len(committed) == 0 {
		return nil, o.abort(ctx, &PublishError{
			Step:    StepCommitFiles,
			Failure: FailureNoFilesCommitted,
			Branch:  branch,
			Err:     commitErr,
		})
	}

	if o.cfg.WriteReadme {
		enter(ctx, StepCommitReadme, "branch", branch)
		o.commitReadme(ctx, client, repo, branch, committed)
	}

	enter(ctx, StepOpenPR, "branch", branch, "base", base)
	body, err := renderPullRequestBody(repo, committed, failed)
	if err != nil {
		return nil, o.abort(ctx, &PublishError{Step: StepOpenPR, Failure: FailurePullRequest, Branch: branch, Err: err})
	}
	url, err := client.OpenPullRequest(ctx, owner, name, github.PullRequest{
		Title: pullRequestTitle(len(committed)),
		Head:  branch,
		Base:  base,
		Body:  body,
	})
	if err != nil {
		return nil, o.abort(ctx, &PublishError{Step: StepOpenPR, Failure: FailurePullRequest, Branch: branch, Err: err})
	}

	enter(ctx, StepDone, "url", url)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "opened pull request")
	return &PublishResult{
		URL:       url,
		Branch:    branch,
		Base:      base,
		Committed: committedPaths(committed),
		Failed:    failed,
	}, nil
}

func isNotFound(err error) bool {
	return err != nil && github.ClassOf(err) == github.ClassNotFound
}

func (o *Orchestrator) abort(ctx context.Context, err *PublishError) error {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("aborted", trace.WithAttributes(
		attribute.String("step", string(err.Step)),
		attribute.String("failure", string(err.Failure)),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, "publication aborted")

	logger.Logger.ErrorContext(ctx, "publication aborted",
		"step", err.Step,
		"failure", err.Failure,
		"branch", err.Branch,
		"error", err.Err,
	)
	return err
}

// commitFiles writes each artifact in order. A failed write is logged and
// skipped; the joined write errors are returned alongside the results.
func (o *Orchestrator) commitFiles(
	ctx context.Context,
	client github.Client,
	repo types.Repository,
	branch string,
	artifacts []types.CodeArtifact,
) ([]committedFile, []string, error) {
	names := uniqueFilenames(artifacts)

	committed := make([]committedFile, 0, len(artifacts))
	failed := make([]string, 0)
	var errs []error
	for i, artifact := range artifacts {
		filePath := path.Join(o.cfg.TestsDir, names[i])
		err := client.PutFile(ctx, repo.Owner, repo.Name, github.FileWrite{
			Path:    filePath,
			Content: artifact.Code,
			Message: "Add generated test: " + names[i],
			Branch:  branch,
		})
		if err != nil {
			logger.Logger.WarnContext(ctx, "failed to commit generated test",
				"path", filePath,
				"artifact_id", artifact.ID,
				"error", err,
			)
			failed = append(failed, filePath)
			errs = append(errs, fmt.Errorf("%s: %w", filePath, err))
			continue
		}
		committed = append(committed, committedFile{Path: filePath, Artifact: artifact})
	}

	return committed, failed, errors.Join(errs...)
}

// commitReadme is best effort: failures are logged and never abort publication.
func (o *Orchestrator) commitReadme(
	ctx context.Context,
	client github.Client,
	repo types.Repository,
	branch string,
	committed []committedFile,
) {
	content, err := renderReadme(repo, committed)
	if err == nil {
		err = client.PutFile(ctx, repo.Owner, repo.Name, github.FileWrite{
			Path:    path.Join(o.cfg.TestsDir, readmeFilename),
			Content: content,
			Message: readmeCommitMessage,
			Branch:  branch,
		})
	}
	if err != nil {
		logger.Logger.WarnContext(ctx, "failed to commit generated tests README",
			"branch", branch,
			"error", err,
		)
		trace.SpanFromContext(ctx).AddEvent("readme skipped", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
	}
}

func committedPaths(committed []committedFile) []string {
	paths := make([]string, len(committed))
	for i, c := range committed {
		paths[i] = c.Path
	}
	return paths
}

// branchNamer hands out branch names with a millisecond suffix that strictly
// increases within the process, even when two calls share a millisecond.
type branchNamer struct {
	now  func() time.Time
	last int64
	mu   sync.Mutex
}

func (b *branchNamer) next(prefix string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ms := b.now().UnixMilli()
	if ms <= b.last {
		ms = b.last + 1
	}
	b.last = ms

	return fmt.Sprintf("%s-%d", prefix, ms)
}
