// Package api exposes the coordinator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sgerhart/roomlink/internal/dispatch"
	"github.com/sgerhart/roomlink/internal/forward"
	"github.com/sgerhart/roomlink/internal/health"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/registry"
	"github.com/sgerhart/roomlink/internal/validate"
)

const maxBodyBytes = 64 * 1024

// Dependencies wires the server to the coordinator components
type Dependencies struct {
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Validator  *validate.Validator
	Checker    health.Checker
	Gatherer   prometheus.Gatherer
	Logger     *logging.Logger

	// ChatTimeout bounds work started by chat callbacks after the
	// acknowledgement has been sent
	ChatTimeout time.Duration
}

// Server is the coordinator HTTP API
type Server struct {
	r           *chi.Mux
	registry    *registry.Registry
	dispatcher  *dispatch.Dispatcher
	validator   *validate.Validator
	health      *health.Handler
	gatherer    prometheus.Gatherer
	logger      *logging.Logger
	chatTimeout time.Duration

	// runAsync runs chat callback work after the response is written
	runAsync func(fn func())
}

// NewServer creates the coordinator server and its routes
func NewServer(deps Dependencies) *Server {
	if deps.ChatTimeout <= 0 {
		deps.ChatTimeout = 30 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		r:           chi.NewRouter(),
		registry:    deps.Registry,
		dispatcher:  deps.Dispatcher,
		validator:   deps.Validator,
		health:      health.NewHandler(deps.Checker),
		gatherer:    deps.Gatherer,
		logger:      deps.Logger.WithComponent("api"),
		chatTimeout: deps.ChatTimeout,
		runAsync:    func(fn func()) { go fn() },
	}

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", s.health.Healthz)
	s.r.Get("/readyz", s.health.Readyz)
	s.r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Worker self-registration
	s.r.Post("/register", s.handleRegister)

	// Registry
	s.r.Get("/rooms", s.handleListRooms)
	s.r.Delete("/rooms/{id}", s.handleRemoveRoom)

	// Two-phase selection
	s.r.Post("/commands/{verb}", s.handleCommand)
	s.r.Post("/selections", s.handleSelection)

	// Slack
	s.r.Post("/slack/commands", s.handleSlashCommand)
	s.r.Post("/slack/interactions", s.handleInteraction)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.r }

// chatContext detaches chat callback work from the request so it can finish
// after Slack has been acknowledged
func (s *Server) chatContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), s.chatTimeout)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, validate.ErrInvalidPayload),
		errors.Is(err, registry.ErrInvalidRegistration),
		errors.Is(err, dispatch.ErrInvalidCommand),
		errors.Is(err, dispatch.ErrVerbMismatch),
		errors.Is(err, model.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrTargetUnavailable),
		errors.Is(err, dispatch.ErrUnknownRoom):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrStaleSelection):
		return http.StatusConflict
	case errors.Is(err, forward.ErrForwardFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the body of failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
