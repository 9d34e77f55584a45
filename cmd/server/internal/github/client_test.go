package github_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testsmith/testsmith/cmd/server/internal/github"
	"github.com/testsmith/testsmith/cmd/server/internal/github/githubtest"
	"github.com/testsmith/testsmith/internal/types"
)

func newClient(t *testing.T, srv *githubtest.Server) github.Client {
	t.Helper()

	factory, err := github.NewFactory(github.Config{APIBaseURL: srv.APIBaseURL()})
	require.NoError(t, err, "failed to create factory")

	client, err := factory.ForPrincipal(github.Credential{Token: "token"})
	require.NoError(t, err, "failed to create client")
	return client
}

func sampleRepo() *githubtest.Repo {
	repo := githubtest.NewRepo("octo", "calc")
	repo.Files = map[string]string{
		"README.md":           "# calc",
		"app.js":              "function add(a,b){return a+b;}",
		"src/math/sub.py":     "def sub(a, b):\n    return a - b\n",
		"src/math/mul.go":     "package math\n",
		"src/util/strings.ts": "export const up = (s: string) => s.toUpperCase()",
		"vendor/lib/x.js":     "module.exports = 1",
	}
	return repo
}

func TestFactory(t *testing.T) {
	t.Run("NoCredential", func(t *testing.T) {
		factory, err := github.NewFactory(github.Config{})
		require.NoError(t, err)

		_, err = factory.ForPrincipal(github.Credential{})
		require.ErrorIs(t, err, github.ErrNoCredential)
	})

	t.Run("InstallationWithoutApp", func(t *testing.T) {
		factory, err := github.NewFactory(github.Config{})
		require.NoError(t, err)

		_, err = factory.ForPrincipal(github.Credential{InstallationID: 42})
		require.ErrorIs(t, err, github.ErrNoCredential)
	})

	t.Run("BadCredentials", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		srv.Token = "expected"
		client := newClient(t, srv)

		_, err := client.ListRepositories(context.Background())
		require.Error(t, err)
		assert.Equal(t, github.KindRepositoryRead, github.KindOf(err))
		assert.Equal(t, github.ClassPermissionDenied, github.ClassOf(err))
	})
}

func TestListRepositories(t *testing.T) {
	srv := githubtest.NewServer(t, sampleRepo(), githubtest.NewRepo("octo", "api"))
	client := newClient(t, srv)

	repos, err := client.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "octo/api", repos[0].FullName)
	assert.Equal(t, "octo", repos[0].Owner)
	assert.Equal(t, "main", repos[1].DefaultBranch)
	assert.False(t, repos[1].UpdatedAt.IsZero())
}

func TestListFiles(t *testing.T) {
	t.Run("Tree", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		client := newClient(t, srv)

		entries, err := client.ListFiles(context.Background(), "octo", "calc", "", 0)
		require.NoError(t, err)

		names := entryNames(entries)
		assert.Equal(t, []string{"app.js", "src", "vendor"}, names, "unsupported files are filtered")

		src := find(t, entries, "src")
		assert.False(t, src.Partial)
		math := find(t, src.Children, "math")
		assert.Equal(t, []string{"mul.go", "sub.py"}, entryNames(math.Children))
		assert.Equal(t, "python", find(t, math.Children, "sub.py").Language)
	})

	t.Run("PartialSubtree", func(t *testing.T) {
		repo := sampleRepo()
		repo.DirErrors["src/math"] = http.StatusInternalServerError
		srv := githubtest.NewServer(t, repo)
		client := newClient(t, srv)

		entries, err := client.ListFiles(context.Background(), "octo", "calc", "", 0)
		require.NoError(t, err, "a failing subtree is not fatal")

		src := find(t, entries, "src")
		assert.True(t, src.Partial, "ancestors of a failed subtree are partial")
		assert.Empty(t, src.Error)

		math := find(t, src.Children, "math")
		assert.True(t, math.Partial)
		assert.NotEmpty(t, math.Error)
		assert.Nil(t, math.Children)

		util := find(t, src.Children, "util")
		assert.False(t, util.Partial, "siblings are unaffected")
		assert.Equal(t, []string{"strings.ts"}, entryNames(util.Children))

		assert.False(t, find(t, entries, "vendor").Partial)
	})

	t.Run("DepthBound", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		client := newClient(t, srv)

		entries, err := client.ListFiles(context.Background(), "octo", "calc", "", 1)
		require.NoError(t, err)

		src := find(t, entries, "src")
		assert.True(t, src.Truncated)
		assert.Nil(t, src.Children)

		// restart the traversal below the bound
		children, err := client.ListFiles(context.Background(), "octo", "calc", src.Path, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"math", "util"}, entryNames(children))
	})

	t.Run("MissingRoot", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		client := newClient(t, srv)

		_, err := client.ListFiles(context.Background(), "octo", "missing", "", 0)
		require.Error(t, err)
		assert.Equal(t, github.ClassNotFound, github.ClassOf(err))
	})
}

func TestReadFiles(t *testing.T) {
	t.Run("SkipsFailures", func(t *testing.T) {
		repo := sampleRepo()
		repo.ReadErrors["src/math/mul.go"] = http.StatusForbidden
		srv := githubtest.NewServer(t, repo)
		client := newClient(t, srv)

		files, err := client.ReadFiles(context.Background(), "octo", "calc", []string{
			"app.js",
			"src/math/mul.go",
			"does/not/exist.js",
			"src/math",
			"src/math/sub.py",
		})
		require.NoError(t, err)
		require.Len(t, files, 2)

		assert.Equal(t, types.FileSnapshot{
			Path:     "app.js",
			Content:  "function add(a,b){return a+b;}",
			Language: "javascript",
		}, files[0])
		assert.Equal(t, "src/math/sub.py", files[1].Path)
		assert.Equal(t, "python", files[1].Language)
	})

	t.Run("NothingRead", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		client := newClient(t, srv)

		_, err := client.ReadFiles(context.Background(), "octo", "calc", []string{"nope.js"})
		require.ErrorIs(t, err, github.ErrNoFilesRead)
		assert.Equal(t, github.KindFileRead, github.KindOf(err))
		assert.Equal(t, github.ClassNotFound, github.ClassOf(err))
	})
}

func TestBranches(t *testing.T) {
	t.Run("DefaultBranch", func(t *testing.T) {
		repo := sampleRepo()
		repo.DefaultBranch = "develop"
		srv := githubtest.NewServer(t, repo)
		client := newClient(t, srv)

		branch, err := client.GetDefaultBranch(context.Background(), "octo", "calc")
		require.NoError(t, err)
		assert.Equal(t, "develop", branch)
	})

	t.Run("MetadataUnavailable", func(t *testing.T) {
		repo := sampleRepo()
		repo.MetadataError = http.StatusBadGateway
		srv := githubtest.NewServer(t, repo)
		client := newClient(t, srv)

		_, err := client.GetDefaultBranch(context.Background(), "octo", "calc")
		require.Error(t, err)
		assert.Equal(t, github.KindHostUnavailable, github.KindOf(err))
		assert.Equal(t, github.ClassUnavailable, github.ClassOf(err))

		var hostErr *github.Error
		require.ErrorAs(t, err, &hostErr)
		assert.Equal(t, http.StatusBadGateway, hostErr.Status)
	})

	t.Run("HeadAndCreate", func(t *testing.T) {
		srv := githubtest.NewServer(t, sampleRepo())
		client := newClient(t, srv)
		ctx := context.Background()

		sha, err := client.GetBranchHeadSHA(ctx, "octo", "calc", "main")
		require.NoError(t, err)
		require.NotEmpty(t, sha)

		_, err = client.GetBranchHeadSHA(ctx, "octo", "calc", "master")
		require.Error(t, err)
		assert.Equal(t, github.KindBranchNotFound, github.KindOf(err))
		assert.Equal(t, github.ClassNotFound, github.ClassOf(err))

		require.NoError(t, client.CreateBranch(ctx, "octo", "calc", "tests/generated-1", sha))
		created, err := client.GetBranchHeadSHA(ctx, "octo", "calc", "tests/generated-1")
		require.NoError(t, err)
		assert.Equal(t, sha, created)

		err = client.CreateBranch(ctx, "octo", "calc", "tests/generated-1", sha)
		require.Error(t, err)
		assert.Equal(t, github.KindBranchCreateError, github.KindOf(err))
		assert.Equal(t, github.ClassConflict, github.ClassOf(err))
	})
}

func TestPutFileAndPullRequest(t *testing.T) {
	repo := sampleRepo()
	repo.WriteErrors["tests/locked.test.js"] = http.StatusConflict
	srv := githubtest.NewServer(t, repo)
	client := newClient(t, srv)
	ctx := context.Background()

	sha, err := client.GetBranchHeadSHA(ctx, "octo", "calc", "main")
	require.NoError(t, err)
	require.NoError(t, client.CreateBranch(ctx, "octo", "calc", "generated", sha))

	write := github.FileWrite{
		Path:    "tests/app.test.js",
		Content: "test('a', () => {})",
		Message: "Add generated test: app.test.js",
		Branch:  "generated",
	}
	require.NoError(t, client.PutFile(ctx, "octo", "calc", write))

	write.Content = "test('b', () => {})"
	require.NoError(t, client.PutFile(ctx, "octo", "calc", write), "overwrites existing file")

	err = client.PutFile(ctx, "octo", "calc", github.FileWrite{
		Path:    "tests/locked.test.js",
		Content: "x",
		Message: "m",
		Branch:  "generated",
	})
	require.Error(t, err)
	assert.Equal(t, github.KindFileWriteError, github.KindOf(err))
	assert.Equal(t, github.ClassConflict, github.ClassOf(err))

	assert.Equal(t,
		map[string]string{"tests/app.test.js": "test('b', () => {})"},
		srv.Committed("octo", "calc", "generated"),
	)

	url, err := client.OpenPullRequest(ctx, "octo", "calc", github.PullRequest{
		Title: "Add generated tests",
		Head:  "generated",
		Base:  "main",
		Body:  "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octo/calc/pull/1", url)

	prs := srv.PullRequests()
	require.Len(t, prs, 1)
	assert.Equal(t, "generated", prs[0].Head)
	assert.Equal(t, "main", prs[0].Base)
}

func TestPullRequestError(t *testing.T) {
	repo := sampleRepo()
	repo.PullRequestError = http.StatusUnprocessableEntity
	srv := githubtest.NewServer(t, repo)
	client := newClient(t, srv)

	_, err := client.OpenPullRequest(context.Background(), "octo", "calc", github.PullRequest{
		Title: "t", Head: "h", Base: "main",
	})
	require.Error(t, err)
	assert.Equal(t, github.KindPullRequestError, github.KindOf(err))
	assert.Equal(t, github.ClassConflict, github.ClassOf(err))
}

func entryNames(entries []types.FileEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func find(t *testing.T, entries []types.FileEntry, name string) types.FileEntry {
	t.Helper()
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	require.FailNow(t, "entry not found", name)
	return types.FileEntry{}
}
