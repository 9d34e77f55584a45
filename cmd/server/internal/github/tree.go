package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/testsmith/testsmith/internal/identifier"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

// DefaultListDepth bounds a listing when the caller does not.
const DefaultListDepth = 8

func (c *RESTClient) ListFiles(
	ctx context.Context,
	owner, repo, path string,
	depth int,
) ([]types.FileEntry, error) {
	ctx, span := tracer.Start(ctx, "ListFiles", trace.WithAttributes(
		attribute.String("repository", owner+"/"+repo),
		attribute.String("path", path),
		attribute.Int("depth", depth),
	))
	defer span.End()

	if depth <= 0 {
		depth = DefaultListDepth
	}

	entries, err := c.listDirectory(ctx, owner, repo, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list directory")
		return nil, err
	}

	c.expand(ctx, owner, repo, entries, depth-1)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed files")
	return entries, nil
}

// expand fills in the children of every directory in entries, remaining
// levels deep. A directory that cannot be listed is kept and marked partial.
// It reports whether any subtree is incomplete.
func (c *RESTClient) expand(
	ctx context.Context,
	owner, repo string,
	entries []types.FileEntry,
	remaining int,
) bool {
	partial := make([]bool, len(entries))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)
	for i := range entries {
		entry := &entries[i]
		if entry.Type != types.EntryTypeDir {
			continue
		}
		if remaining <= 0 {
			entry.Truncated = true
			continue
		}

		eg.Go(func() error {
			children, err := c.listDirectory(egCtx, owner, repo, entry.Path)
			if err != nil {
				logger.Logger.WarnContext(egCtx, "failed to list subdirectory",
					"repository", owner+"/"+repo,
					"path", entry.Path,
					"error", err,
				)
				entry.Partial = true
				entry.Error = err.Error()
				partial[i] = true
				return nil
			}

			if c.expand(egCtx, owner, repo, children, remaining-1) {
				entry.Partial = true
				partial[i] = true
			}
			entry.Children = children
			return nil
		})
	}
	// subtree failures are recorded on the entries, never returned
	_ = eg.Wait()

	for _, p := range partial {
		if p {
			return true
		}
	}
	return false
}

// listDirectory returns the directories and supported source files directly under path
func (c *RESTClient) listDirectory(ctx context.Context, owner, repo, path string) ([]types.FileEntry, error) {
	_, contents, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, wrap(KindRepositoryRead, fmt.Errorf("failed to list %q: %w", path, err))
	}

	entries := make([]types.FileEntry, 0, len(contents))
	for _, item := range contents {
		entry, ok := toEntry(item)
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func toEntry(item *github.RepositoryContent) (types.FileEntry, bool) {
	switch item.GetType() {
	case "dir":
		return types.FileEntry{
			Name: item.GetName(),
			Path: item.GetPath(),
			Type: types.EntryTypeDir,
		}, true
	case "file":
		if !identifier.IsSupported(item.GetName()) {
			return types.FileEntry{}, false
		}
		return types.FileEntry{
			Name:     item.GetName(),
			Path:     item.GetPath(),
			Type:     types.EntryTypeFile,
			Size:     item.GetSize(),
			Language: identifier.GetLanguage(item.GetName(), nil).String(),
		}, true
	default:
		return types.FileEntry{}, false
	}
}
