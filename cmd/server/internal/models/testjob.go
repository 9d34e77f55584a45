package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/testsmith/testsmith/internal/types"
)

// Columns a stage may change after creation. Repository and files are fixed once the job exists.
var mutableJobColumns = []string{
	"status",
	"summary_origin",
	"summaries",
	"generated_code",
	"pull_requests",
	"version",
}

type TestJob struct {
	Status        types.JobStatus `gorm:"type:text;default:'pending'"`
	SummaryOrigin string
	Model

	Repository    types.Repository             `gorm:"type:jsonb;serializer:json"`
	Files         []types.FileSnapshot         `gorm:"type:jsonb;serializer:json"`
	Summaries     []types.Summary              `gorm:"type:jsonb;serializer:json"`
	GeneratedCode []types.CodeArtifact         `gorm:"type:jsonb;serializer:json"`
	PullRequests  []types.PublishedPullRequest `gorm:"type:jsonb;serializer:json"`

	OwnerID uuid.UUID `gorm:"type:uuid"`
	// Incremented by every successful Save
	Version int64
}

func (TestJob) TableName() string {
	return "test_job"
}

func (j TestJob) GetID() uuid.UUID {
	return j.ID
}

// Index of the summary with id, or -1
func (j *TestJob) SummaryIndex(id string) int {
	for i, s := range j.Summaries {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (j *TestJob) ToAPI() types.TestJob {
	return types.TestJob{
		ID:            j.ID,
		Repository:    j.Repository,
		Files:         nonNil(j.Files),
		Summaries:     nonNil(j.Summaries),
		GeneratedCode: nonNil(j.GeneratedCode),
		PullRequests:  nonNil(j.PullRequests),
		Status:        j.Status,
		SummaryOrigin: j.SummaryOrigin,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Persists test jobs. Every read and write is scoped to the owning user.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *TestJob) error {
	ctx, span := tracer.Start(ctx, "JobStore.Create", trace.WithAttributes(
		attribute.String("ownerID", job.OwnerID.String()),
	))
	defer span.End()

	job.Version = 1
	job.Files = nonNil(job.Files)
	job.Summaries = nonNil(job.Summaries)
	job.GeneratedCode = nonNil(job.GeneratedCode)
	job.PullRequests = nonNil(job.PullRequests)

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create job")
		return fmt.Errorf("failed to create job: %w", err)
	}

	span.SetAttributes(attribute.String("jobID", job.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created job")
	return nil
}

// Returns ErrNotFound when the job does not exist or belongs to another user
func (s *JobStore) Get(ctx context.Context, ownerID, id uuid.UUID) (*TestJob, error) {
	ctx, span := tracer.Start(ctx, "JobStore.Get", trace.WithAttributes(
		attribute.String("ownerID", ownerID.String()),
		attribute.String("jobID", id.String()),
	))
	defer span.End()

	job, err := ByOwnedID[TestJob](ctx, s.db, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "job not found")
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get job")
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got job")
	return job, nil
}

// Newest first
func (s *JobStore) List(ctx context.Context, ownerID uuid.UUID, limit int) ([]TestJob, error) {
	ctx, span := tracer.Start(ctx, "JobStore.List", trace.WithAttributes(
		attribute.String("ownerID", ownerID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	var jobs []TestJob
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list jobs")
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed jobs")
	return jobs, nil
}

// Writes the mutable columns of job if nobody else saved it since it was read.
// Returns ErrVersionConflict otherwise. On success job.Version is advanced.
func (s *JobStore) Save(ctx context.Context, job *TestJob) error {
	ctx, span := tracer.Start(ctx, "JobStore.Save", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.Int64("version", job.Version),
	))
	defer span.End()

	next := *job
	next.Version = job.Version + 1

	result := s.db.WithContext(ctx).
		Model(&TestJob{Model: Model{ID: job.ID}}).
		Where("owner_id = ? AND version = ?", job.OwnerID, job.Version).
		Select(mutableJobColumns).
		Updates(&next)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to save job")
		return fmt.Errorf("failed to save job: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		span.RecordError(ErrVersionConflict)
		span.SetStatus(codes.Error, "stale job version")
		return ErrVersionConflict
	}

	job.Version = next.Version

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved job")
	return nil
}
