// Package githubtest serves an in-memory GitHub REST API for tests.
package githubtest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type (
	Repo struct {
		Owner         string
		Name          string
		DefaultBranch string
		Private       bool
		// branch name to head sha
		Branches map[string]string
		// path to content on every branch
		Files map[string]string
		// branch to path to content written through the contents API
		Commits map[string]map[string]string
		// Status returned when listing a directory path
		DirErrors map[string]int
		// Status returned when reading a file path
		ReadErrors map[string]int
		// Status returned when writing a file path
		WriteErrors map[string]int
		// Status returned for repository metadata
		MetadataError int
		// Status returned when creating a ref
		CreateRefError int
		// Status returned when opening a pull request
		PullRequestError int
	}

	PullRequest struct {
		Number int
		Owner  string
		Repo   string
		Title  string
		Head   string
		Base   string
		Body   string
		URL    string
	}

	Server struct {
		*httptest.Server
		// Required bearer token. Empty accepts any.
		Token string

		mu           sync.Mutex
		repos        map[string]*Repo
		pullRequests []PullRequest
		createdRefs  []string
	}
)

func NewRepo(owner, name string) *Repo {
	return &Repo{
		Owner:         owner,
		Name:          name,
		DefaultBranch: "main",
		Branches:      map[string]string{"main": sha("main")},
		Files:         map[string]string{},
		Commits:       map[string]map[string]string{},
		DirErrors:     map[string]int{},
		ReadErrors:    map[string]int{},
		WriteErrors:   map[string]int{},
	}
}

// NewServer starts a fake API serving repos. It is closed when t finishes.
func NewServer(t testing.TB, repos ...*Repo) *Server {
	t.Helper()

	s := &Server{repos: map[string]*Repo{}}
	for _, r := range repos {
		s.repos[r.Owner+"/"+r.Name] = r
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/repos", s.listRepos)
	mux.HandleFunc("GET /repos/{owner}/{repo}", s.getRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.getContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.putContents)
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/heads/{branch...}", s.getRef)
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/refs", s.createRef)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", s.createPull)

	s.Server = httptest.NewServer(s.authorize(mux))
	t.Cleanup(s.Close)
	return s
}

// APIBaseURL is the REST root to configure clients with.
func (s *Server) APIBaseURL() string {
	return s.URL + "/"
}

func (s *Server) PullRequests() []PullRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PullRequest(nil), s.pullRequests...)
}

func (s *Server) CreatedRefs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.createdRefs...)
}

// Committed returns the files written to branch of owner/name.
func (s *Server) Committed(owner, name, branch string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]string{}
	if r, ok := s.repos[owner+"/"+name]; ok {
		for p, c := range r.Commits[branch] {
			out[p] = c
		}
	}
	return out
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || (s.Token != "" && auth != "Bearer "+s.Token) {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) repo(w http.ResponseWriter, r *http.Request) (*Repo, bool) {
	repo, ok := s.repos[r.PathValue("owner")+"/"+r.PathValue("repo")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
	}
	return repo, ok
}

func (s *Server) listRepos(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.repos))
	for k := range s.repos {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	for i, k := range keys {
		out = append(out, repoJSON(int64(i+1), s.repos[k]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRepo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}
	if repo.MetadataError != 0 {
		writeError(w, repo.MetadataError, "metadata unavailable")
		return
	}
	writeJSON(w, http.StatusOK, repoJSON(1, repo))
}

// view is the content of a branch: defaults overlaid with commits
func (repo *Repo) view(branch string) map[string]string {
	files := map[string]string{}
	for p, c := range repo.Files {
		files[p] = c
	}
	for p, c := range repo.Commits[branch] {
		files[p] = c
	}
	return files
}

func (s *Server) getContents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}

	p := strings.Trim(r.PathValue("path"), "/")
	branch := r.URL.Query().Get("ref")
	if branch == "" {
		branch = repo.DefaultBranch
	}
	files := repo.view(branch)

	if content, ok := files[p]; ok {
		if status := repo.ReadErrors[p]; status != 0 {
			writeError(w, status, "read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"name":     path.Base(p),
			"path":     p,
			"size":     len(content),
			"sha":      sha(content),
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
		return
	}

	if status := repo.DirErrors[p]; status != 0 {
		writeError(w, status, "listing failed")
		return
	}

	prefix := ""
	if p != "" {
		prefix = p + "/"
	}
	children := map[string]map[string]any{}
	for fp, content := range files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		entry := map[string]any{"name": name, "path": prefix + name, "type": "file", "size": len(content)}
		if isDir {
			entry = map[string]any{"name": name, "path": prefix + name, "type": "dir"}
		}
		children[name] = entry
	}
	if len(children) == 0 {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	names := make([]string, 0, len(children))
	for n := range children {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, children[n])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) putContents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}

	var body struct {
		SHA     *string `json:"sha"`
		Message string  `json:"message"`
		Branch  string  `json:"branch"`
		Content []byte  `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := strings.Trim(r.PathValue("path"), "/")
	if status := repo.WriteErrors[p]; status != 0 {
		writeError(w, status, "write failed")
		return
	}
	if _, ok := repo.Branches[body.Branch]; !ok {
		writeError(w, http.StatusNotFound, "Branch not found")
		return
	}
	if existing, ok := repo.view(body.Branch)[p]; ok && (body.SHA == nil || *body.SHA != sha(existing)) {
		writeError(w, http.StatusConflict, "sha does not match")
		return
	}

	if repo.Commits[body.Branch] == nil {
		repo.Commits[body.Branch] = map[string]string{}
	}
	repo.Commits[body.Branch][p] = string(body.Content)
	repo.Branches[body.Branch] = sha(body.Branch + p + string(body.Content))

	writeJSON(w, http.StatusCreated, map[string]any{
		"content": map[string]any{"path": p, "sha": sha(string(body.Content))},
		"commit":  map[string]any{"sha": repo.Branches[body.Branch], "message": body.Message},
	})
}

func (s *Server) getRef(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}

	branch := r.PathValue("branch")
	head, ok := repo.Branches[branch]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/" + branch,
		"object": map[string]any{"type": "commit", "sha": head},
	})
}

func (s *Server) createRef(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}
	if repo.CreateRefError != 0 {
		writeError(w, repo.CreateRefError, "ref creation failed")
		return
	}

	var body struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	branch := strings.TrimPrefix(body.Ref, "refs/heads/")
	if _, exists := repo.Branches[branch]; exists {
		writeError(w, http.StatusUnprocessableEntity, "Reference already exists")
		return
	}
	repo.Branches[branch] = body.SHA
	s.createdRefs = append(s.createdRefs, branch)

	writeJSON(w, http.StatusCreated, map[string]any{
		"ref":    body.Ref,
		"object": map[string]any{"type": "commit", "sha": body.SHA},
	})
}

func (s *Server) createPull(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repo(w, r)
	if !ok {
		return
	}
	if repo.PullRequestError != 0 {
		writeError(w, repo.PullRequestError, "A pull request already exists")
		return
	}

	var body struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Base  string `json:"base"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	number := len(s.pullRequests) + 1
	pr := PullRequest{
		Number: number,
		Owner:  repo.Owner,
		Repo:   repo.Name,
		Title:  body.Title,
		Head:   body.Head,
		Base:   body.Base,
		Body:   body.Body,
		URL:    fmt.Sprintf("https://github.com/%s/%s/pull/%d", repo.Owner, repo.Name, number),
	}
	s.pullRequests = append(s.pullRequests, pr)

	writeJSON(w, http.StatusCreated, map[string]any{
		"number":   number,
		"title":    pr.Title,
		"body":     pr.Body,
		"html_url": pr.URL,
	})
}

func repoJSON(id int64, r *Repo) map[string]any {
	return map[string]any{
		"id":             id,
		"name":           r.Name,
		"full_name":      r.Owner + "/" + r.Name,
		"owner":          map[string]any{"login": r.Owner},
		"private":        r.Private,
		"default_branch": r.DefaultBranch,
		"updated_at":     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339),
	}
}

func sha(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}
