package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/testsmith/testsmith/internal/types"
)

func summaryPayload() types.SummaryRequest {
	return types.SummaryRequest{
		Repository: types.Repository{Owner: "octo", Name: "widgets"},
		Files: []types.FileSnapshot{{
			Path:    "app.js",
			Content: "function add(a,b){return a+b;}",
		}},
	}
}

// createJob runs the summary stage for the owner and returns the new job.
func (s *ServerTestSuite) createJob() types.TestJob {
	r := s.call(http.MethodPost, "/v1/generate/summary/", ownerAuth(), summaryPayload())
	s.Require().Equal(http.StatusCreated, r.code, "summary stage failed: %s", r.body)

	var job types.TestJob
	s.Require().NoError(json.Unmarshal([]byte(r.body), &job))
	return job
}

func summaryIDs(job types.TestJob) []string {
	ids := make([]string, len(job.Summaries))
	for i, summary := range job.Summaries {
		ids[i] = summary.ID
	}
	return ids
}

func (s *ServerTestSuite) Test_GenerateSummary() {
	tests := []struct {
		name           string
		auth           *clientAuth
		payload        any
		bodyTester     func(t *testing.T, body map[string]any)
		expectedStatus int
	}{
		{
			name:           "ValidFiles",
			auth:           ownerAuth(),
			payload:        summaryPayload(),
			expectedStatus: http.StatusCreated,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "completed", body["status"])
				assert.Equal(t, "fallback", body["summary_origin"])
				assert.Len(t, body["summaries"], 3)
				assert.Empty(t, body["generated_code"])
			},
		},
		{
			name: "ValidPaths",
			auth: ownerAuth(),
			payload: types.SummaryRequest{
				Repository: types.Repository{Owner: "octo", Name: "widgets"},
				Paths:      []string{"src/calc.py"},
			},
			expectedStatus: http.StatusCreated,
			bodyTester: func(t *testing.T, body map[string]any) {
				files := body["files"].([]any)
				if assert.Len(t, files, 1) {
					file := files[0].(map[string]any)
					assert.Equal(t, "src/calc.py", file["path"])
					assert.Equal(t, "python", file["language"])
					assert.Contains(t, file["content"], "def sub")
				}
			},
		},
		{
			name: "MissingPath",
			auth: ownerAuth(),
			payload: types.SummaryRequest{
				Repository: types.Repository{Owner: "octo", Name: "widgets"},
				Paths:      []string{"does/not/exist.js"},
			},
			expectedStatus: http.StatusNotFound,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body, "message")
				assert.Contains(t, body, "details")
			},
		},
		{
			name: "InvalidNoFilesOrPaths",
			auth: ownerAuth(),
			payload: types.SummaryRequest{
				Repository: types.Repository{Owner: "octo", Name: "widgets"},
			},
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assertErrorBodyWithFields(t, body)
				assert.Equal(t, "validation error", body["message"])
				assert.Contains(t, body["fields"], "files")
			},
		},
		{
			name: "InvalidMissingRepository",
			auth: ownerAuth(),
			payload: types.SummaryRequest{
				Files: summaryPayload().Files,
			},
			expectedStatus: http.StatusBadRequest,
			bodyTester:     assertErrorBodyWithFields,
		},
		{
			name:           "InvalidJSON",
			auth:           ownerAuth(),
			payload:        `{"repository": `,
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body, "message")
			},
		},
		{
			name:           "Unauthenticated",
			payload:        summaryPayload(),
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
		{
			name:           "WrongToken",
			auth:           &clientAuth{owner.ID.String(), "not the token"},
			payload:        summaryPayload(),
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
		{
			name:           "InactiveUser",
			auth:           &clientAuth{inactive.ID.String(), authToken},
			payload:        summaryPayload(),
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r := s.call(http.MethodPost, "/v1/generate/summary/", tt.auth, tt.payload)

			s.Equal(tt.expectedStatus, r.code, "incorrect status code: %s", r.body)
			tt.bodyTester(s.T(), decodeMap(s.T(), r))
		})
	}
}

func (s *ServerTestSuite) Test_GenerateCode() {
	job := s.createJob()
	ids := summaryIDs(job)

	tests := []struct {
		name           string
		auth           *clientAuth
		payload        any
		bodyTester     func(t *testing.T, body map[string]any)
		expectedStatus int
	}{
		{
			name: "Valid",
			auth: ownerAuth(),
			payload: types.CodeRequest{
				TestJobID:  job.ID,
				SummaryIDs: ids[:1],
			},
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Equal(t, job.ID.String(), body["test_job_id"])
				code := body["generated_code"].([]any)
				if assert.Len(t, code, 1) {
					artifact := code[0].(map[string]any)
					assert.Equal(t, ids[0], artifact["summary_id"])
					assert.Equal(t, "app.test.js", artifact["filename"])
					assert.Equal(t, "jest", artifact["framework"])
					assert.NotEmpty(t, artifact["code"])
				}
			},
		},
		{
			name: "UnknownSummariesGenerateNothing",
			auth: ownerAuth(),
			payload: types.CodeRequest{
				TestJobID:  job.ID,
				SummaryIDs: []string{"no-such-summary"},
			},
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Empty(t, body["generated_code"])
			},
		},
		{
			name: "OtherOwner",
			auth: otherAuth(),
			payload: types.CodeRequest{
				TestJobID:  job.ID,
				SummaryIDs: ids,
			},
			expectedStatus: http.StatusNotFound,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body, "message")
			},
		},
		{
			name: "InvalidNoSummaries",
			auth: ownerAuth(),
			payload: types.CodeRequest{
				TestJobID: job.ID,
			},
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "summary_ids")
			},
		},
		{
			name:           "InvalidMissingJob",
			auth:           ownerAuth(),
			payload:        `{"summary_ids": ["a"]}`,
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assertErrorBodyWithFields(t, body)
				assert.Contains(t, body["fields"], "test_job_id")
			},
		},
		{
			name:           "Unauthenticated",
			payload:        types.CodeRequest{TestJobID: job.ID, SummaryIDs: ids},
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r := s.call(http.MethodPost, "/v1/generate/code/", tt.auth, tt.payload)

			s.Equal(tt.expectedStatus, r.code, "incorrect status code: %s", r.body)
			tt.bodyTester(s.T(), decodeMap(s.T(), r))
		})
	}
}

func (s *ServerTestSuite) Test_GeneratePullRequest() {
	s.Run("NoGeneratedCode", func() {
		job := s.createJob()

		r := s.call(http.MethodPost, "/v1/generate/pr/", ownerAuth(), types.PullRequestRequest{TestJobID: job.ID})

		s.Equal(http.StatusBadRequest, r.code, r.body)
		s.Empty(s.github.PullRequests())
	})

	s.Run("OtherOwner", func() {
		job := s.createJob()

		r := s.call(http.MethodPost, "/v1/generate/pr/", otherAuth(), types.PullRequestRequest{TestJobID: job.ID})

		s.Equal(http.StatusNotFound, r.code, r.body)
	})

	s.Run("FullFlow", func() {
		job := s.createJob()
		ids := summaryIDs(job)

		r := s.call(http.MethodPost, "/v1/generate/code/", ownerAuth(), types.CodeRequest{
			TestJobID:  job.ID,
			SummaryIDs: ids,
		})
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var code types.CodeResponse
		s.Require().NoError(json.Unmarshal([]byte(r.body), &code))
		s.Require().Len(code.GeneratedCode, len(ids))

		before := len(s.github.PullRequests())
		r = s.call(http.MethodPost, "/v1/generate/pr/", ownerAuth(), types.PullRequestRequest{TestJobID: job.ID})
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var published types.PullRequestResponse
		s.Require().NoError(json.Unmarshal([]byte(r.body), &published))
		s.NotEmpty(published.PullRequestURL)
		s.Contains(published.Branch, "testsmith/generated-tests-")
		s.Len(published.CommittedFiles, len(ids))
		s.Empty(published.FailedFiles)

		prs := s.github.PullRequests()
		s.Require().Len(prs, before+1)
		pr := prs[len(prs)-1]
		s.Equal("main", pr.Base)
		s.Equal(published.Branch, pr.Head)

		committed := s.github.Committed("octo", "widgets", published.Branch)
		s.Contains(committed, "tests/app.test.js")
		s.Contains(committed, "tests/README.md")

		r = s.call(http.MethodGet, "/v1/testcases/"+job.ID.String()+"/", ownerAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var stored types.TestJob
		s.Require().NoError(json.Unmarshal([]byte(r.body), &stored))
		s.Equal(types.JobStatusCompleted, stored.Status)
		s.Len(stored.GeneratedCode, len(ids))
		if s.Len(stored.PullRequests, 1) {
			s.Equal(published.PullRequestURL, stored.PullRequests[0].URL)
		}
	})
}
