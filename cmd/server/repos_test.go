package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testsmith/testsmith/internal/types"
)

func (s *ServerTestSuite) Test_Health() {
	r := s.call(http.MethodGet, "/health/", nil, nil)
	s.Equal(http.StatusOK, r.code)
}

func (s *ServerTestSuite) Test_ListRepositories() {
	s.Run("Valid", func() {
		r := s.call(http.MethodGet, "/v1/repos/", ownerAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var repos []types.RepoSummary
		s.Require().NoError(json.Unmarshal([]byte(r.body), &repos))
		if s.Len(repos, 1) {
			s.Equal("octo/widgets", repos[0].FullName)
			s.Equal("main", repos[0].DefaultBranch)
		}
	})

	s.Run("Unauthenticated", func() {
		r := s.call(http.MethodGet, "/v1/repos/", nil, nil)
		s.Equal(http.StatusUnauthorized, r.code)
		unauthorizedBodyTester(s.T(), decodeMap(s.T(), r))
	})

	s.Run("BadUserID", func() {
		r := s.call(http.MethodGet, "/v1/repos/", &clientAuth{"not-a-uuid", authToken}, nil)
		s.Equal(http.StatusUnauthorized, r.code)
	})
}

func (s *ServerTestSuite) Test_ListFiles() {
	tests := []struct {
		name           string
		query          string
		repo           string
		expectedStatus int
		bodyTester     func(t *testing.T, raw string)
	}{
		{
			name:           "Root",
			repo:           "octo/widgets",
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, raw string) {
				var entries []types.FileEntry
				require.NoError(t, json.Unmarshal([]byte(raw), &entries))

				names := make([]string, len(entries))
				for i, e := range entries {
					names[i] = e.Name
				}
				assert.Contains(t, names, "app.js")
				assert.Contains(t, names, "src")
			},
		},
		{
			name:           "Subdirectory",
			repo:           "octo/widgets",
			query:          "?path=src",
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, raw string) {
				var entries []types.FileEntry
				require.NoError(t, json.Unmarshal([]byte(raw), &entries))
				if assert.Len(t, entries, 1) {
					assert.Equal(t, "src/calc.py", entries[0].Path)
					assert.Equal(t, types.EntryTypeFile, entries[0].Type)
				}
			},
		},
		{
			name:           "NegativeDepth",
			repo:           "octo/widgets",
			query:          "?depth=-1",
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, raw string) {
				body := map[string]any{}
				require.NoError(t, json.Unmarshal([]byte(raw), &body))
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "depth")
			},
		},
		{
			name:           "DepthNotANumber",
			repo:           "octo/widgets",
			query:          "?depth=deep",
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, raw string) {
				body := map[string]any{}
				require.NoError(t, json.Unmarshal([]byte(raw), &body))
				assert.Contains(t, body, "message")
			},
		},
		{
			name:           "PathEscapesRepository",
			repo:           "octo/widgets",
			query:          "?path=../secrets",
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, raw string) {
				body := map[string]any{}
				require.NoError(t, json.Unmarshal([]byte(raw), &body))
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "path")
			},
		},
		{
			name:           "UnknownRepository",
			repo:           "octo/gadgets",
			expectedStatus: http.StatusNotFound,
			bodyTester: func(t *testing.T, raw string) {
				body := map[string]any{}
				require.NoError(t, json.Unmarshal([]byte(raw), &body))
				assert.Contains(t, body, "message")
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r := s.call(http.MethodGet, "/v1/repos/"+tt.repo+"/files/"+tt.query, ownerAuth(), nil)

			s.Equal(tt.expectedStatus, r.code, "incorrect status code: %s", r.body)
			tt.bodyTester(s.T(), r.body)
		})
	}
}

func (s *ServerTestSuite) Test_ReadFiles() {
	tests := []struct {
		name           string
		payload        any
		expectedStatus int
		bodyTester     func(t *testing.T, body map[string]any)
	}{
		{
			name:           "Valid",
			payload:        types.ReadFilesRequest{Paths: []string{"app.js", "src/calc.py"}},
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Len(t, body["files"], 2)
			},
		},
		{
			name:           "PartiallyMissing",
			payload:        types.ReadFilesRequest{Paths: []string{"app.js", "missing.js"}},
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, body map[string]any) {
				files := body["files"].([]any)
				if assert.Len(t, files, 1) {
					assert.Equal(t, "app.js", files[0].(map[string]any)["path"])
					assert.Equal(t, "javascript", files[0].(map[string]any)["language"])
				}
			},
		},
		{
			name:           "AllMissing",
			payload:        types.ReadFilesRequest{Paths: []string{"missing.js"}},
			expectedStatus: http.StatusNotFound,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body, "message")
			},
		},
		{
			name:           "InvalidNoPaths",
			payload:        types.ReadFilesRequest{},
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "paths")
			},
		},
		{
			name:           "InvalidPathEscapesRepository",
			payload:        types.ReadFilesRequest{Paths: []string{"../../etc/passwd"}},
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "paths[0]")
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r := s.call(http.MethodPost, "/v1/repos/octo/widgets/contents/", ownerAuth(), tt.payload)

			s.Equal(tt.expectedStatus, r.code, "incorrect status code: %s", r.body)
			tt.bodyTester(s.T(), decodeMap(s.T(), r))
		})
	}
}
