// Package worker implements a room node: it executes commands forwarded by
// the coordinator and keeps its registration fresh.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sgerhart/roomlink/internal/action"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/validate"
)

const maxBodyBytes = 64 * 1024

// Executor runs commands on this room
type Executor interface {
	Execute(ctx context.Context, verb model.Verb, payload, originChannel string) (model.ForwardResponse, error)
	RoomName() string
}

// Server serves the worker HTTP API
type Server struct {
	router    *mux.Router
	executor  Executor
	validator *validate.Validator
	logger    *logging.Logger
	server    *http.Server
	startTime time.Time
}

// NewServer creates a worker server listening on port
func NewServer(executor Executor, validator *validate.Validator, port int, logger *logging.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		executor:  executor,
		validator: validator,
		logger:    logger.WithComponent("worker_http"),
		startTime: time.Now(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ping", s.handlePing).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/commands", s.handleCommand).Methods("POST")

	// Form endpoints kept for older coordinators
	s.router.HandleFunc("/openurl", s.handleLegacyOpen).Methods("POST")
	s.router.HandleFunc("/openzoom", s.handleLegacyOpen).Methods("POST")
	s.router.HandleFunc("/createzoom", s.handleLegacyCreate).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.logger.LogSystemEvent("http_server_started", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Pong"))
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status string `json:"status"`
	Room   string `json:"room"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Room:   s.executor.RoomName(),
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeJSONResponse(w, http.StatusBadRequest, model.ForwardResponse{Message: "Failed to read request body"})
		return
	}

	resp, status := s.HandleCommand(r.Context(), body)
	s.writeJSONResponse(w, status, resp)
}

// HandleCommand validates and executes a JSON forwarded command. It backs
// both the HTTP endpoint and the NATS subscription.
func (s *Server) HandleCommand(ctx context.Context, body []byte) (model.ForwardResponse, int) {
	if err := s.validator.Validate(body); err != nil {
		s.logger.Warn("Rejected command", "error", err)
		return model.ForwardResponse{Message: err.Error()}, http.StatusBadRequest
	}

	var req model.ForwardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.ForwardResponse{Message: "Invalid JSON"}, http.StatusBadRequest
	}

	return s.execute(ctx, req.Verb, req.Payload, req.OriginChannel)
}

func (s *Server) handleLegacyOpen(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	link := r.FormValue("url")
	if link == "" {
		link = r.FormValue("text")
	}

	resp, status := s.execute(r.Context(), model.VerbOpen, link, r.FormValue("channel_id"))
	s.writeLegacyResponse(w, status, resp)
}

func (s *Server) handleLegacyCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	resp, status := s.execute(r.Context(), model.VerbCreate, "", r.FormValue("channel_id"))
	s.writeLegacyResponse(w, status, resp)
}

func (s *Server) execute(ctx context.Context, verb model.Verb, payload, channel string) (model.ForwardResponse, int) {
	s.logger.Info("Executing command", "verb", verb, "channel", channel)

	resp, err := s.executor.Execute(ctx, verb, payload, channel)
	if err != nil {
		s.logger.Error("Command failed", "verb", verb, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, action.ErrEmptyLink) || errors.Is(err, action.ErrUnknownVerb) {
			status = http.StatusBadRequest
		}
		return model.ForwardResponse{OK: false, Message: err.Error()}, status
	}
	return resp, http.StatusOK
}

func (s *Server) writeLegacyResponse(w http.ResponseWriter, status int, resp model.ForwardResponse) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	if resp.OK {
		w.Write([]byte("Success"))
		return
	}
	w.Write([]byte(strings.TrimSpace(resp.Message)))
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
