package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sgerhart/roomlink/internal/model"
)

// RegisterResponse acknowledges a registration
type RegisterResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// RoomInfo is one entry of the room listing
type RoomInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// RoomsResponse is the registry snapshot keyed by room ID
type RoomsResponse struct {
	Rooms map[string]RoomInfo `json:"rooms"`
	Total int                 `json:"total"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := s.validator.Validate(body); err != nil {
		s.logger.LogRegistryEvent("registration_rejected", "remote", r.RemoteAddr, "error", err)
		s.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	var req model.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	entry, err := s.registry.Register(req.ID, req.Name, req.Addr())
	if err != nil {
		s.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	s.writeJSONResponse(w, http.StatusOK, RegisterResponse{OK: true, ID: entry.ID})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()

	resp := RoomsResponse{
		Rooms: make(map[string]RoomInfo, len(entries)),
		Total: len(entries),
	}
	for _, entry := range entries {
		resp.Rooms[entry.ID] = RoomInfo{Address: entry.Address, Name: entry.Name}
	}

	s.writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
