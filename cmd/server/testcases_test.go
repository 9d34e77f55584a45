package main

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/testsmith/testsmith/internal/types"
)

func (s *ServerTestSuite) Test_ListTestJobs() {
	first := s.createJob()
	second := s.createJob()

	s.Run("NewestFirst", func() {
		r := s.call(http.MethodGet, "/v1/testcases/", ownerAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var jobs []types.TestJob
		s.Require().NoError(json.Unmarshal([]byte(r.body), &jobs))
		s.Require().Len(jobs, 2)
		s.Equal(second.ID, jobs[0].ID)
		s.Equal(first.ID, jobs[1].ID)
	})

	s.Run("Limit", func() {
		r := s.call(http.MethodGet, "/v1/testcases/?limit=1", ownerAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var jobs []types.TestJob
		s.Require().NoError(json.Unmarshal([]byte(r.body), &jobs))
		s.Len(jobs, 1)
	})

	s.Run("InvalidLimit", func() {
		r := s.call(http.MethodGet, "/v1/testcases/?limit=many", ownerAuth(), nil)
		s.Equal(http.StatusBadRequest, r.code, r.body)
		assertErrorBodyWithFields(s.T(), decodeMap(s.T(), r))
	})

	s.Run("OtherOwnerSeesNone", func() {
		r := s.call(http.MethodGet, "/v1/testcases/", otherAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)
		s.JSONEq(`[]`, r.body)
	})
}

func (s *ServerTestSuite) Test_GetTestJob() {
	job := s.createJob()

	s.Run("Valid", func() {
		r := s.call(http.MethodGet, "/v1/testcases/"+job.ID.String()+"/", ownerAuth(), nil)
		s.Require().Equal(http.StatusOK, r.code, r.body)

		var got types.TestJob
		s.Require().NoError(json.Unmarshal([]byte(r.body), &got))
		s.Equal(job.ID, got.ID)
		s.Equal(job.Summaries, got.Summaries)
		s.Equal("octo", got.Repository.Owner)
	})

	s.Run("OtherOwner", func() {
		r := s.call(http.MethodGet, "/v1/testcases/"+job.ID.String()+"/", otherAuth(), nil)
		s.Equal(http.StatusNotFound, r.code)
		notFoundBodyTester(s.T(), decodeMap(s.T(), r))
	})

	s.Run("Unknown", func() {
		r := s.call(http.MethodGet, "/v1/testcases/"+uuid.New().String()+"/", ownerAuth(), nil)
		s.Equal(http.StatusNotFound, r.code)
		notFoundBodyTester(s.T(), decodeMap(s.T(), r))
	})

	s.Run("MalformedID", func() {
		r := s.call(http.MethodGet, "/v1/testcases/not-a-uuid/", ownerAuth(), nil)
		s.Equal(http.StatusNotFound, r.code)
	})

	s.Run("Unauthenticated", func() {
		r := s.call(http.MethodGet, "/v1/testcases/"+job.ID.String()+"/", nil, nil)
		s.Equal(http.StatusUnauthorized, r.code)
	})
}
