// Package health serves liveness and readiness endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/sgerhart/roomlink/internal/logging"
)

// Checker reports service health
type Checker interface {
	IsHealthy() bool
	IsReady() bool
}

// ComponentChecker tracks readiness per named component. The service is ready
// once every registered component reports ready.
type ComponentChecker struct {
	mu         sync.RWMutex
	components map[string]func() bool
	logger     *logging.Logger
}

// NewComponentChecker creates an empty checker
func NewComponentChecker(logger *logging.Logger) *ComponentChecker {
	return &ComponentChecker{
		components: make(map[string]func() bool),
		logger:     logger.WithComponent("health"),
	}
}

// Register adds a readiness probe under name
func (c *ComponentChecker) Register(name string, ready func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = ready
	c.logger.Debug("Readiness component registered", "name", name)
}

// IsHealthy implements Checker. The process is healthy while it serves.
func (c *ComponentChecker) IsHealthy() bool {
	return true
}

// IsReady implements Checker
func (c *ComponentChecker) IsReady() bool {
	for _, ready := range c.Status() {
		if !ready {
			return false
		}
	}
	return true
}

// Status returns the readiness of every component
func (c *ComponentChecker) Status() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[string]bool, len(c.components))
	for name, ready := range c.components {
		status[name] = ready()
	}
	return status
}

// Response is the body of the health endpoints
type Response struct {
	OK         bool            `json:"ok"`
	Message    string          `json:"message,omitempty"`
	Components map[string]bool `json:"components,omitempty"`
}

// Handler serves /healthz and /readyz
type Handler struct {
	checker Checker
}

// NewHandler creates a health handler
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.checker.IsHealthy() {
		writeResponse(w, http.StatusOK, Response{OK: true})
		return
	}
	writeResponse(w, http.StatusServiceUnavailable, Response{OK: false, Message: "Service unhealthy"})
}

// Readyz handles GET /readyz
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var components map[string]bool
	if cc, ok := h.checker.(*ComponentChecker); ok {
		components = cc.Status()
	}

	if h.checker.IsReady() {
		writeResponse(w, http.StatusOK, Response{OK: true, Components: components})
		return
	}

	var waiting []string
	for name, ready := range components {
		if !ready {
			waiting = append(waiting, name)
		}
	}
	sort.Strings(waiting)

	message := "Service not ready"
	if len(waiting) > 0 {
		message += ": waiting for " + waiting[0]
	}
	writeResponse(w, http.StatusServiceUnavailable, Response{OK: false, Message: message, Components: components})
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
