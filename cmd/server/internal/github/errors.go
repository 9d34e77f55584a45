package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// Kind is the repository host operation that failed.
type Kind string

const (
	KindHostUnavailable   Kind = "host_unavailable"
	KindRepositoryRead    Kind = "repository_read"
	KindFileRead          Kind = "file_read"
	KindBranchNotFound    Kind = "branch_not_found"
	KindBranchCreateError Kind = "branch_create_error"
	KindFileWriteError    Kind = "file_write_error"
	KindPullRequestError  Kind = "pull_request_error"
)

// Class is the cause of a failure as reported by the host's status code.
type Class string

const (
	ClassPermissionDenied Class = "permission_denied"
	ClassNotFound         Class = "not_found"
	ClassConflict         Class = "conflict"
	ClassUnavailable      Class = "unavailable"
)

var (
	ErrNoCredential = errors.New("no repository host credential for principal")
	ErrNoFilesRead  = errors.New("none of the requested files could be read")
)

// Error is returned by every Client operation that fails at the host.
type Error struct {
	Err    error
	Kind   Kind
	Class  Class
	Status int
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, status %d): %v", e.Kind, e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, err error) error {
	status := statusOf(err)
	return &Error{Err: err, Kind: kind, Class: classFromStatus(status), Status: status}
}

func statusOf(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response.StatusCode
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return abuseErr.Response.StatusCode
	}

	return 0
}

func classFromStatus(status int) Class {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ClassPermissionDenied
	case http.StatusNotFound:
		return ClassNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return ClassConflict
	default:
		return ClassUnavailable
	}
}

// KindOf returns the kind of a repository host error, or "" for other errors.
func KindOf(err error) Kind {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Kind
	}
	return ""
}

// ClassOf returns the cause class of a repository host error, or "" for other errors.
func ClassOf(err error) Class {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Class
	}
	return ""
}
