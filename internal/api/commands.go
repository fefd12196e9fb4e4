package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sgerhart/roomlink/internal/model"
)

// CommandRequest starts a selection, or dispatches directly when Room is set
type CommandRequest struct {
	Payload string `json:"payload,omitempty"`
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Room    string `json:"room,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && err != io.EOF {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cmd := model.Command{
		Verb:          model.Verb(strings.ToLower(chi.URLParam(r, "verb"))),
		Payload:       req.Payload,
		OriginChannel: req.Channel,
		ActingUser:    req.User,
	}

	if req.Room != "" {
		outcome, err := s.dispatcher.Direct(r.Context(), cmd, req.Room)
		if err != nil {
			s.writeJSONResponse(w, statusFor(err), outcome)
			return
		}
		s.writeJSONResponse(w, http.StatusOK, outcome)
		return
	}

	proposal, err := s.dispatcher.CommandEntry(r.Context(), cmd)
	if err != nil {
		s.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	s.writeJSONResponse(w, http.StatusOK, proposal)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var sel model.Selection
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&sel); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	outcome, err := s.dispatcher.Select(r.Context(), sel)
	if err != nil {
		s.writeJSONResponse(w, statusFor(err), outcome)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, outcome)
}
