package types

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CanTransition reports whether a job in status s may move to next. Status
// only moves forward; completed may be re-asserted by later generation stages
// but never left.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusCompleted:
		return next == JobStatusCompleted
	default:
		return false
	}
}

type TestType string

const (
	TestTypeUnit        TestType = "unit"
	TestTypeIntegration TestType = "integration"
	TestTypeE2E         TestType = "e2e"
	TestTypePerformance TestType = "performance"
	TestTypeSecurity    TestType = "security"
)

var TestTypes = []TestType{
	TestTypeUnit,
	TestTypeIntegration,
	TestTypeE2E,
	TestTypePerformance,
	TestTypeSecurity,
}

func (t TestType) Valid() bool {
	for _, v := range TestTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type (
	Repository struct {
		// Login of the user or organization owning the repository
		Owner string `json:"owner"     validate:"required"`
		// Repository name without the owner
		Name string `json:"name"      validate:"required"`
		// owner/name
		FullName string `json:"full_name" validate:"omitempty"`
	}

	// FileSnapshot is the content of one source file captured when a job is created.
	FileSnapshot struct {
		Path     string `json:"path"     validate:"required,safe_path"`
		Content  string `json:"content"  validate:"required,content_size"`
		Language string `json:"language" validate:"omitempty"`
	}

	// Summary is a proposed test case, generated before any code is.
	Summary struct {
		// Unique within the owning job
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		TestType    TestType `json:"test_type"`
		Framework   string   `json:"framework"`
		Priority    Priority `json:"priority"`
	}

	// CodeArtifact is one generated test file.
	CodeArtifact struct {
		ID        string `json:"id"`
		SummaryID string `json:"summary_id"`
		Code      string `json:"code"`
		Filename  string `json:"filename"`
		Framework string `json:"framework"`
		Language  string `json:"language"`
		// Command that runs the generated test with its framework
		RunCommand string    `json:"run_command,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	PublishedPullRequest struct {
		URL       string    `json:"url"`
		Branch    string    `json:"branch"`
		Files     []string  `json:"files"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func (r Repository) FullNameOrDefault() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Owner + "/" + r.Name
}

// TestJob is the caller-facing view of a job record.
type TestJob struct {
	ID            uuid.UUID              `json:"id"`
	Repository    Repository             `json:"repository"`
	Files         []FileSnapshot         `json:"files"`
	Summaries     []Summary              `json:"summaries"`
	GeneratedCode []CodeArtifact         `json:"generated_code"`
	PullRequests  []PublishedPullRequest `json:"pull_requests"`
	Status        JobStatus              `json:"status"`
	// model or fallback, for the summaries currently on the job
	SummaryOrigin string    `json:"summary_origin,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
