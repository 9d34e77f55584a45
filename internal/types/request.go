package types

import "github.com/google/uuid"

type (
	SummaryRequest struct {
		Repository Repository `json:"repository" validate:"required"`
		// Explicit snapshots. Either Files or Paths must be set.
		Files []FileSnapshot `json:"files"      validate:"required_without=Paths,max=50,dive"`
		// Paths to snapshot from the repository host when the job is created.
		Paths []string `json:"paths"      validate:"required_without=Files,max=50,dive,required,safe_path"`
	}

	CodeRequest struct {
		TestJobID  uuid.UUID `json:"test_job_id" validate:"required"`
		SummaryIDs []string  `json:"summary_ids" validate:"required,min=1,dive,required"`
	}

	PullRequestRequest struct {
		TestJobID uuid.UUID `json:"test_job_id"        validate:"required"`
		// Artifact ids or summary ids. Empty publishes every generated artifact.
		GeneratedCodeIDs []string `json:"generated_code_ids" validate:"omitempty,dive,required"`
	}

	ReadFilesRequest struct {
		Paths []string `json:"paths" validate:"required,min=1,max=50,dive,required,safe_path"`
	}

	CodeResponse struct {
		TestJobID     uuid.UUID      `json:"test_job_id"`
		GeneratedCode []CodeArtifact `json:"generated_code"`
	}

	PullRequestResponse struct {
		PullRequestURL string   `json:"pull_request_url"`
		Branch         string   `json:"branch"`
		CommittedFiles []string `json:"committed_files"`
		FailedFiles    []string `json:"failed_files,omitempty"`
	}

	ReadFilesResponse struct {
		Files []FileSnapshot `json:"files"`
	}
)
