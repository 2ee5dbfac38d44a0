package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"nightlight/app"
	"nightlight/jobqueue"
	"nightlight/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Server struct {
	app   *app.App
	queue *jobqueue.Queue
	log   *zap.Logger
}

func New(a *app.App, queue *jobqueue.Queue, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{app: a, queue: queue, log: log}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", s.createUser)
		r.Get("/users/{id}", s.getUser)

		r.Post("/groups", s.createGroup)
		r.Get("/groups/{id}", s.getGroup)
		r.Delete("/groups/{id}", s.deleteGroup)

		r.Post("/venues", s.createVenue)
		r.Get("/venues/{id}", s.getVenue)
		r.Post("/venues/{id}/reactions", s.addReaction)
		r.Delete("/venues/{id}/reactions", s.removeReaction)

		r.Post("/pings", s.sendPing)
		r.Get("/pings/{id}", s.getPing)
		r.Post("/pings/{id}/respond", s.respondPing)

		r.Get("/users/{id}/notifications", s.listNotifications)
	})

	r.Route("/admin/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Get("/counts", s.jobCounts)
		r.Get("/{id}", s.getJob)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var invalid *app.InvalidArgumentError
	switch {
	case errors.As(err, &invalid):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Msg})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, app.ErrPingResolved):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
