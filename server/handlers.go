package server

import (
	"net/http"
	"strconv"
	"time"

	"nightlight/app"
	"nightlight/model"

	"github.com/google/uuid"
)

type createUserRequest struct {
	Name       string   `json:"name"`
	PushTokens []string `json:"pushTokens"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.app.CreateUser(r.Context(), req.Name, req.PushTokens)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}
	u, err := s.app.GetUser(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

type createGroupRequest struct {
	Name           string      `json:"name"`
	CreatorID      uuid.UUID   `json:"creatorId"`
	Invited        []uuid.UUID `json:"invited"`
	ExpirationDate time.Time   `json:"expirationDate"`
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.app.CreateGroup(r.Context(), app.CreateGroupParams{
		Name:           req.Name,
		CreatorID:      req.CreatorID,
		Invited:        req.Invited,
		ExpirationDate: req.ExpirationDate,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, g)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid group id"})
		return
	}
	g, err := s.app.GetGroup(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid group id"})
		return
	}
	if err := s.app.DeleteGroup(r.Context(), id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createVenueRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s *Server) createVenue(w http.ResponseWriter, r *http.Request) {
	var req createVenueRequest
	if !s.decode(w, r, &req) {
		return
	}
	v, err := s.app.CreateVenue(r.Context(), req.Name, req.Address)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getVenue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid venue id"})
		return
	}
	v, err := s.app.GetVenue(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

type reactionRequest struct {
	UserID    uuid.UUID `json:"userId"`
	Emoji     string    `json:"emoji"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) addReaction(w http.ResponseWriter, r *http.Request) {
	venueID, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid venue id"})
		return
	}
	var req reactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.app.AddReaction(r.Context(), app.AddReactionParams{
		VenueID:   venueID,
		UserID:    req.UserID,
		Emoji:     req.Emoji,
		ExpiresAt: req.ExpiresAt,
	}); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeReaction(w http.ResponseWriter, r *http.Request) {
	venueID, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid venue id"})
		return
	}
	var req reactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.app.RemoveReaction(r.Context(), venueID, req.UserID, req.Emoji); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendPingRequest struct {
	SenderID           uuid.UUID  `json:"senderId"`
	RecipientID        uuid.UUID  `json:"recipientId"`
	VenueID            *uuid.UUID `json:"venueId"`
	Message            string     `json:"message"`
	ExpirationDateTime time.Time  `json:"expirationDateTime"`
}

func (s *Server) sendPing(w http.ResponseWriter, r *http.Request) {
	var req sendPingRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.app.SendPing(r.Context(), app.SendPingParams{
		SenderID:           req.SenderID,
		RecipientID:        req.RecipientID,
		VenueID:            req.VenueID,
		Message:            req.Message,
		ExpirationDateTime: req.ExpirationDateTime,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ping id"})
		return
	}
	p, err := s.app.GetPing(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

type respondPingRequest struct {
	Status model.PingStatus `json:"status"`
}

func (s *Server) respondPing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ping id"})
		return
	}
	var req respondPingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.app.RespondPing(r.Context(), id, req.Status); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ns, err := s.app.ListNotifications(r.Context(), id, limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ns)
}
