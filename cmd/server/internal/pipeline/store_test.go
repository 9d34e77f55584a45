package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	"github.com/testsmith/testsmith/cmd/server/internal/models"
)

// memStore is an in-memory JobStore with the same version semantics as models.JobStore.
type memStore struct {
	jobs map[uuid.UUID]models.TestJob
	// runs before each Save, with the lock released
	beforeSave func(job *models.TestJob)
	// returned by the next Save instead of storing
	failNext error
	saves    int
	mu         sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{jobs: map[uuid.UUID]models.TestJob{}}
}

func clone(job models.TestJob) models.TestJob {
	job.Files = append(job.Files[:0:0], job.Files...)
	job.Summaries = append(job.Summaries[:0:0], job.Summaries...)
	job.GeneratedCode = append(job.GeneratedCode[:0:0], job.GeneratedCode...)
	job.PullRequests = append(job.PullRequests[:0:0], job.PullRequests...)
	return job
}

func (s *memStore) Create(_ context.Context, job *models.TestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Version = 1
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = clone(*job)
	return nil
}

func (s *memStore) Get(_ context.Context, ownerID, id uuid.UUID) (*models.TestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	out := clone(job)
	return &out, nil
}

func (s *memStore) List(_ context.Context, ownerID uuid.UUID, limit int) ([]models.TestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TestJob
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, clone(job))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, job *models.TestJob) error {
	if s.beforeSave != nil {
		s.beforeSave(job)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}

	stored, ok := s.jobs[job.ID]
	if !ok || stored.OwnerID != job.OwnerID || stored.Version != job.Version {
		return models.ErrVersionConflict
	}

	job.Version++
	job.UpdatedAt = time.Now()
	s.jobs[job.ID] = clone(*job)
	return nil
}

// mutate changes the stored job directly, as a concurrent writer would.
func (s *memStore) mutate(id uuid.UUID, fn func(job *models.TestJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := clone(s.jobs[id])
	fn(&job)
	job.Version++
	s.jobs[id] = job
}

// staticHosts hands out one client to every principal.
type staticHosts struct {
	client github.Client
	err    error
}

//nolint:ireturn // matches HostFactory
func (h staticHosts) ForPrincipal(_ github.Credential) (github.Client, error) {
	return h.client, h.err
}
