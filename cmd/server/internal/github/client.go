package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/testsmith/testsmith/internal/identifier"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

const (
	maxRepositoryPages = 3
	fetchConcurrency   = 4
)

type (
	FileWrite struct {
		Path    string
		Content string
		Message string
		Branch  string
	}

	PullRequest struct {
		Title string
		// Branch holding the changes
		Head string
		// Branch the changes are merged into
		Base string
		Body string
	}
)

// Client is the repository host surface used by the pipeline. Every failure
// is returned as an *Error tagged with its Kind and Class.
//
//go:generate mockgen -destination ./mock/mock.go -package mock . Client
type Client interface {
	ListRepositories(ctx context.Context) ([]types.RepoSummary, error)
	// ListFiles lists the tree under path. depth bounds the recursion; zero uses the default bound.
	ListFiles(ctx context.Context, owner, repo, path string, depth int) ([]types.FileEntry, error)
	// ReadFiles fetches each path, skipping paths that fail. It only fails when nothing could be read.
	ReadFiles(ctx context.Context, owner, repo string, paths []string) ([]types.FileSnapshot, error)
	GetDefaultBranch(ctx context.Context, owner, repo string) (string, error)
	GetBranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, fromSHA string) error
	// PutFile creates or overwrites a file on a branch.
	PutFile(ctx context.Context, owner, repo string, file FileWrite) error
	// OpenPullRequest returns the pull request's web URL.
	OpenPullRequest(ctx context.Context, owner, repo string, pr PullRequest) (string, error)
}

// RESTClient implements Client on the GitHub REST API.
type RESTClient struct {
	gh *github.Client
}

func (c *RESTClient) ListRepositories(ctx context.Context) ([]types.RepoSummary, error) {
	ctx, span := tracer.Start(ctx, "ListRepositories")
	defer span.End()

	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var repos []types.RepoSummary
	for page := 0; page < maxRepositoryPages; page++ {
		span.AddEvent("fetching repository page", trace.WithAttributes(attribute.Int("page", opts.Page)))
		result, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list repositories")
			return nil, wrap(KindRepositoryRead, fmt.Errorf("failed to list repositories: %w", err))
		}

		for _, r := range result {
			repos = append(repos, types.RepoSummary{
				ID:            r.GetID(),
				Name:          r.GetName(),
				FullName:      r.GetFullName(),
				Owner:         r.GetOwner().GetLogin(),
				Private:       r.GetPrivate(),
				Description:   r.GetDescription(),
				Language:      r.GetLanguage(),
				DefaultBranch: r.GetDefaultBranch(),
				UpdatedAt:     r.GetUpdatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	span.SetAttributes(attribute.Int("repositories.count", len(repos)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed repositories")
	return repos, nil
}

func (c *RESTClient) ReadFiles(
	ctx context.Context,
	owner, repo string,
	paths []string,
) ([]types.FileSnapshot, error) {
	ctx, span := tracer.Start(ctx, "ReadFiles", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.Int("paths.count", len(paths)),
	))
	defer span.End()

	results := make([]*types.FileSnapshot, len(paths))
	failures := make([]error, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)
	for i, path := range paths {
		eg.Go(func() error {
			snapshot, err := c.readFile(egCtx, owner, repo, path)
			if err != nil {
				logger.Logger.WarnContext(egCtx, "skipping unreadable file",
					"repository", owner+"/"+repo,
					"path", path,
					"error", err,
				)
				failures[i] = err
				return nil
			}
			results[i] = snapshot
			return nil
		})
	}
	// per-file failures are recorded, never returned
	_ = eg.Wait()

	files := make([]types.FileSnapshot, 0, len(paths))
	var lastErr error
	for i, r := range results {
		if r != nil {
			files = append(files, *r)
		} else if failures[i] != nil {
			lastErr = failures[i]
		}
	}

	span.SetAttributes(attribute.Int("files.count", len(files)))
	if len(paths) > 0 && len(files) == 0 {
		err := errors.Join(ErrNoFilesRead, lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no files could be read")
		return nil, &Error{Err: err, Kind: KindFileRead, Class: ClassOf(lastErr), Status: statusOf(lastErr)}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "read files")
	return files, nil
}

func (c *RESTClient) readFile(ctx context.Context, owner, repo, path string) (*types.FileSnapshot, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, wrap(KindFileRead, fmt.Errorf("failed to fetch %s: %w", path, err))
	}
	if file == nil {
		return nil, &Error{
			Err:   fmt.Errorf("%s is a directory", path),
			Kind:  KindFileRead,
			Class: ClassNotFound,
		}
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, &Error{
			Err:   fmt.Errorf("failed to decode %s: %w", path, err),
			Kind:  KindFileRead,
			Class: ClassUnavailable,
		}
	}

	return &types.FileSnapshot{
		Path:     file.GetPath(),
		Content:  content,
		Language: identifier.GetLanguage(path, []byte(content)).String(),
	}, nil
}

func (c *RESTClient) GetDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	ctx, span := tracer.Start(ctx, "GetDefaultBranch", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
	))
	defer span.End()

	repository, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read repository")
		return "", wrap(KindHostUnavailable, fmt.Errorf("failed to read repository metadata: %w", err))
	}

	branch := repository.GetDefaultBranch()
	if branch == "" {
		err := errors.New("repository metadata has no default branch")
		span.RecordError(err)
		span.SetStatus(codes.Error, "no default branch")
		return "", &Error{Err: err, Kind: KindHostUnavailable, Class: ClassNotFound}
	}

	span.SetAttributes(attribute.String("branch", branch))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved default branch")
	return branch, nil
}

func (c *RESTClient) GetBranchHeadSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	ctx, span := tracer.Start(ctx, "GetBranchHeadSHA", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.String("branch", branch),
	))
	defer span.End()

	ref, _, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve branch")
		return "", wrap(KindBranchNotFound, fmt.Errorf("failed to resolve branch %s: %w", branch, err))
	}

	sha := ref.GetObject().GetSHA()
	span.SetAttributes(attribute.String("sha", sha))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved branch head")
	return sha, nil
}

func (c *RESTClient) CreateBranch(ctx context.Context, owner, repo, branch, fromSHA string) error {
	ctx, span := tracer.Start(ctx, "CreateBranch", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.String("branch", branch),
		attribute.String("sha", fromSHA),
	))
	defer span.End()

	_, _, err := c.gh.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(fromSHA)},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create branch")
		return wrap(KindBranchCreateError, fmt.Errorf("failed to create branch %s: %w", branch, err))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created branch")
	return nil
}

func (c *RESTClient) PutFile(ctx context.Context, owner, repo string, file FileWrite) error {
	ctx, span := tracer.Start(ctx, "PutFile", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.String("branch", file.Branch),
		attribute.String("path", file.Path),
	))
	defer span.End()

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(file.Message),
		Content: []byte(file.Content),
		Branch:  github.String(file.Branch),
	}

	span.AddEvent("checking for existing file")
	existing, _, resp, err := c.gh.Repositories.GetContents(
		ctx,
		owner,
		repo,
		file.Path,
		&github.RepositoryContentGetOptions{Ref: file.Branch},
	)
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		span.AddEvent("updating existing file")
		_, _, err = c.gh.Repositories.UpdateFile(ctx, owner, repo, file.Path, opts)
	case err == nil || (resp != nil && resp.StatusCode == http.StatusNotFound):
		span.AddEvent("creating file")
		_, _, err = c.gh.Repositories.CreateFile(ctx, owner, repo, file.Path, opts)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write file")
		return wrap(KindFileWriteError, fmt.Errorf("failed to write %s: %w", file.Path, err))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "wrote file")
	return nil
}

func (c *RESTClient) OpenPullRequest(ctx context.Context, owner, repo string, pr PullRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenPullRequest", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.String("head", pr.Head),
		attribute.String("base", pr.Base),
	))
	defer span.End()

	created, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               github.String(pr.Title),
		Head:                github.String(pr.Head),
		Base:                github.String(pr.Base),
		Body:                github.String(pr.Body),
		MaintainerCanModify: github.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open pull request")
		return "", wrap(KindPullRequestError, fmt.Errorf("failed to open pull request: %w", err))
	}

	url := created.GetHTMLURL()
	span.SetAttributes(attribute.String("pull_request.url", url))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "opened pull request")
	return url, nil
}
