package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
)

var (
	ErrNoFiles           = errors.New("no files selected")
	ErrInvalidRepository = errors.New("repository owner and name are required")
	ErrNoValidSummaries  = errors.New("none of the selected summaries exist on the job")
	ErrNoGeneratedCode   = errors.New("no generated code matches the selection")
	ErrJobNotFound       = errors.New("test job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Step is a state of the pull request publication protocol.
type Step string

const (
	StepResolveBranch  Step = "resolve_branch"
	StepResolveHeadSHA Step = "resolve_head_sha"
	StepCreateBranch   Step = "create_branch"
	StepCommitFiles    Step = "commit_files"
	StepCommitReadme   Step = "commit_readme"
	StepOpenPR         Step = "open_pull_request"
	StepDone           Step = "done"
)

// Failure is the reason publication was aborted.
type Failure string

const (
	FailureNoDefaultBranch  Failure = "no_default_branch"
	FailureHeadSHA          Failure = "head_sha_error"
	FailureBranchCreate     Failure = "branch_create_error"
	FailureNoFilesCommitted Failure = "no_files_committed"
	FailurePullRequest      Failure = "pull_request_error"
)

// PublishError aborts the publication protocol.
type PublishError struct {
	Err     error
	Step    Step
	Failure Failure
	// Branch created before the abort, left in place. Empty if none was created.
	Branch string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publication aborted at %s (%s): %v", e.Step, e.Failure, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Category is the caller-facing class of a stage failure.
type Category int

const (
	CategoryInternal Category = iota
	CategoryInput
	CategoryNotFound
	CategoryPermission
	CategoryConflict
	CategoryUpstream
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryNotFound:
		return "not_found"
	case CategoryPermission:
		return "permission"
	case CategoryConflict:
		return "conflict"
	case CategoryUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

var inputErrors = []error{
	ErrNoFiles,
	ErrInvalidRepository,
	ErrNoValidSummaries,
	ErrNoGeneratedCode,
}

// returns the input sentinel err wraps, or nil
func inputError(err error) error {
	for _, sentinel := range inputErrors {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// Classify maps a stage error onto its caller-facing category.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryInternal
	case errors.Is(err, ErrJobNotFound):
		return CategoryNotFound
	case inputError(err) != nil:
		return CategoryInput
	case errors.Is(err, ErrInvalidTransition):
		return CategoryConflict
	case errors.Is(err, github.ErrNoCredential):
		return CategoryPermission
	}

	switch github.ClassOf(err) {
	case github.ClassPermissionDenied:
		return CategoryPermission
	case github.ClassNotFound:
		return CategoryNotFound
	case github.ClassConflict:
		return CategoryConflict
	case github.ClassUnavailable:
		return CategoryUpstream
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return CategoryUpstream
	}

	return CategoryInternal
}

// UserMessage returns the short explanation shown to the caller. The raw
// error stays available for diagnostics.
func UserMessage(err error) string {
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return publishMessage(pubErr)
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrJobNotFound):
		return "Test job not found."
	case inputError(err) != nil:
		return sentence(inputError(err).Error())
	case errors.Is(err, ErrInvalidTransition):
		return "The test job cannot run this stage in its current status."
	case errors.Is(err, github.ErrNoCredential):
		return "No repository host credential is configured for this user."
	}

	switch github.ClassOf(err) {
	case github.ClassPermissionDenied:
		return "Permission denied by the repository host."
	case github.ClassNotFound:
		return "Repository or path not found on the repository host."
	case github.ClassConflict:
		return "The repository host rejected the change as conflicting."
	case github.ClassUnavailable:
		return "The repository host is unavailable."
	}

	return "Internal error."
}

func publishMessage(err *PublishError) string {
	class := github.ClassOf(err.Err)

	switch err.Failure {
	case FailureNoDefaultBranch:
		return "The repository has no default branch: neither the reported default, main nor master could be resolved."
	case FailureHeadSHA:
		switch class {
		case github.ClassPermissionDenied:
			return "Permission denied: the credential cannot read branches in this repository."
		case github.ClassUnavailable:
			return "The repository host is unavailable: the base branch could not be read."
		}
		return "The base branch could not be read."
	case FailureBranchCreate:
		switch class {
		case github.ClassConflict:
			return "A branch with the generated name already exists. Publish again to use a new name."
		case github.ClassPermissionDenied:
			return "Permission denied: the credential cannot create branches in this repository."
		case github.ClassNotFound:
			return "Repository not found or not accessible with this credential."
		}
		return "The publication branch could not be created."
	case FailureNoFilesCommitted:
		if class == github.ClassPermissionDenied {
			return "Permission denied: the credential cannot write files in this repository."
		}
		return "None of the generated test files could be committed."
	case FailurePullRequest:
		switch class {
		case github.ClassConflict:
			return "A pull request for this branch already exists or the branch has no changes."
		case github.ClassPermissionDenied:
			return "Permission denied: the credential cannot open pull requests in this repository."
		}
		return "The pull request could not be opened."
	}

	return "Publishing the generated tests failed."
}

func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
