package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
	"github.com/testsmith/testsmith/internal/audit"
	"github.com/testsmith/testsmith/internal/generation"
	"github.com/testsmith/testsmith/internal/types"
)

const name string = "github.com/testsmith/testsmith/cmd/server/internal/pipeline"

var tracer = otel.Tracer(name)

const (
	DefaultJobListLimit = 20
	maxJobListLimit     = 100
	defaultUpdateRetry  = 5
)

// Principal is the caller every stage acts for.
type Principal struct {
	ID         uuid.UUID
	Credential github.Credential
}

type (
	HostFactory interface {
		ForPrincipal(cred github.Credential) (github.Client, error)
	}

	Generator interface {
		ProposeSummaries(ctx context.Context, files []types.FileSnapshot) generation.Proposal
		GenerateCode(ctx context.Context, files []types.FileSnapshot, summary types.Summary) generation.Generated
	}

	// JobStore persists job records scoped to their owner. Save must fail with
	// models.ErrVersionConflict when the record changed since it was read.
	JobStore interface {
		Create(ctx context.Context, job *models.TestJob) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*models.TestJob, error)
		List(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.TestJob, error)
		Save(ctx context.Context, job *models.TestJob) error
	}

	Archiver interface {
		ArchiveArtifact(ctx context.Context, auditContext audit.Context, artifact types.CodeArtifact) error
	}
)

type Config struct {
	// Prefix of every publication branch name
	BranchPrefix string
	// Directory generated tests are committed under
	TestsDir    string
	WriteReadme bool
	// Times a change is re-applied after a concurrent save
	MaxUpdateRetries uint64
}

type Option func(*Orchestrator)

func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.branches.now = now
	}
}

// Orchestrator drives test jobs through summary generation, code generation
// and publication.
type Orchestrator struct {
	store     JobStore
	generator Generator
	hosts     HostFactory
	archiver  Archiver
	branches  *branchNamer
	now       func() time.Time
	cfg       Config
}

func New(store JobStore, generator Generator, hosts HostFactory, cfg Config, opts ...Option) *Orchestrator {
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "testsmith/generated-tests"
	}
	if cfg.TestsDir == "" {
		cfg.TestsDir = "tests"
	}
	if cfg.MaxUpdateRetries == 0 {
		cfg.MaxUpdateRetries = defaultUpdateRetry
	}

	o := &Orchestrator{
		store:     store,
		generator: generator,
		hosts:     hosts,
		cfg:       cfg,
		now:       time.Now,
		branches:  &branchNamer{now: time.Now},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) client(p Principal) (github.Client, error) {
	client, err := o.hosts.ForPrincipal(p.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository host client: %w", err)
	}
	return client, nil
}

func (o *Orchestrator) ListRepositories(ctx context.Context, p Principal) ([]types.RepoSummary, error) {
	client, err := o.client(p)
	if err != nil {
		return nil, err
	}
	return client.ListRepositories(ctx)
}

func (o *Orchestrator) ListFiles(
	ctx context.Context,
	p Principal,
	owner, repo, path string,
	depth int,
) ([]types.FileEntry, error) {
	client, err := o.client(p)
	if err != nil {
		return nil, err
	}
	return client.ListFiles(ctx, owner, repo, path, depth)
}

func (o *Orchestrator) ReadFiles(
	ctx context.Context,
	p Principal,
	owner, repo string,
	paths []string,
) ([]types.FileSnapshot, error) {
	client, err := o.client(p)
	if err != nil {
		return nil, err
	}
	return client.ReadFiles(ctx, owner, repo, paths)
}

// Newest first. A non-positive limit uses DefaultJobListLimit.
func (o *Orchestrator) ListJobs(ctx context.Context, p Principal, limit int) ([]models.TestJob, error) {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)
	return o.store.List(ctx, p.ID, limit)
}

func (o *Orchestrator) GetJob(ctx context.Context, p Principal, jobID uuid.UUID) (*models.TestJob, error) {
	return o.load(ctx, p.ID, jobID)
}

func (o *Orchestrator) load(ctx context.Context, ownerID, jobID uuid.UUID) (*models.TestJob, error) {
	job, err := o.store.Get(ctx, ownerID, jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

// mutation applies one change to a freshly loaded job. It reports whether
// anything changed; an unchanged job is not saved.
type mutation func(job *models.TestJob) (bool, error)

// update applies mutate to job and saves it. When another call saved the job
// first, the job is reloaded and mutate is applied again to the fresh copy.
// On return job holds the saved state.
func (o *Orchestrator) update(ctx context.Context, job *models.TestJob, mutate mutation) error {
	ctx, span := tracer.Start(ctx, "update", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
	))
	defer span.End()

	original := *job
	current := job
	attempts := 0

	b := retry.NewExponential(10 * time.Millisecond)
	b = retry.WithMaxRetries(o.cfg.MaxUpdateRetries, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			fresh, err := o.load(ctx, job.OwnerID, job.ID)
			if err != nil {
				return err
			}
			current = fresh
		}

		changed, err := mutate(current)
		if err != nil || !changed {
			return err
		}

		err = o.store.Save(ctx, current)
		if errors.Is(err, models.ErrVersionConflict) {
			span.AddEvent("version conflict", trace.WithAttributes(attribute.Int("attempt", attempts)))
			return retry.RetryableError(err)
		}
		return err
	})
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		*job = original
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update job")
		return fmt.Errorf("failed to update job: %w", err)
	}

	*job = *current

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated job")
	return nil
}

// transition moves job to next, rejecting moves the status machine forbids.
func transition(job *models.TestJob, next types.JobStatus) error {
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, job.Status, next)
	}
	job.Status = next
	return nil
}

func auditContext(p Principal, job *models.TestJob) audit.Context {
	userID := p.ID.String()
	jobID := job.ID.String()
	return audit.Context{
		UserID:     &userID,
		JobID:      &jobID,
		Repository: job.Repository.FullNameOrDefault(),
	}
}
