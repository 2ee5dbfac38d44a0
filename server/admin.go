package server

import (
	"errors"
	"net/http"
	"strconv"

	"nightlight/jobqueue"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Admin endpoints expose the queue's introspection surface for operators.

func jobQueryFromRequest(r *http.Request) jobqueue.JobQuery {
	q := r.URL.Query()
	f := jobqueue.JobQuery{
		JobGroup: q.Get("jobGroup"),
		Type:     q.Get("type"),
	}
	for _, s := range q["status"] {
		f.Statuses = append(f.Statuses, jobqueue.JobStatus(s))
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = v
	}
	f.IncludePayload = q.Get("payload") == "true"
	return f
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	page, err := s.queue.ListJobs(r.Context(), jobQueryFromRequest(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) jobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.GetCounts(r.Context(), jobQueryFromRequest(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid job id"})
		return
	}
	job, err := s.queue.GetJob(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}
