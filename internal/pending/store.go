// Package pending holds proposed actions until a selection resolves them.
package pending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/model"
)

// ErrNotFound is returned when a correlation has no live pending action,
// either because it was never issued, already consumed, or expired
var ErrNotFound = errors.New("pending action not found")

// Store maps correlation tokens to pending actions. Each action is consumed
// at most once.
type Store struct {
	mu       sync.Mutex
	actions  map[string]*model.PendingAction
	ttl      time.Duration
	capacity int
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// NewStore creates a store. ttl of zero means actions never expire.
func NewStore(ttl time.Duration, capacity int, logger *logging.Logger, m *metrics.Metrics) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		actions:  make(map[string]*model.PendingAction),
		ttl:      ttl,
		capacity: capacity,
		logger:   logger.WithComponent("pending"),
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetClock replaces the time source
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put records action under a fresh correlation token and returns a copy
// carrying it
func (s *Store) Put(action model.PendingAction) model.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapLocked()

	if len(s.actions) >= s.capacity {
		s.evictOldestLocked()
	}

	action.Correlation = s.newID()
	action.CreatedAt = s.now()
	stored := action
	s.actions[action.Correlation] = &stored
	s.metrics.PendingActions.Set(float64(len(s.actions)))

	return action
}

// SetMessageRef attaches the presentation message to a pending action
func (s *Store) SetMessageRef(correlation, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action, ok := s.actions[correlation]; ok {
		action.MessageRef = ref
	}
}

// Get returns the pending action without consuming it
func (s *Store) Get(correlation string) (model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[correlation]
	if !ok || s.expiredLocked(action) {
		return model.PendingAction{}, ErrNotFound
	}
	return *action, nil
}

// Take removes and returns the pending action. A second Take for the same
// correlation returns ErrNotFound.
func (s *Store) Take(correlation string) (model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[correlation]
	if !ok {
		return model.PendingAction{}, ErrNotFound
	}
	delete(s.actions, correlation)
	s.metrics.PendingActions.Set(float64(len(s.actions)))

	if s.expiredLocked(action) {
		return model.PendingAction{}, ErrNotFound
	}
	return *action, nil
}

// Len returns the number of stored actions, expired or not
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Reap drops expired actions and returns how many were removed
func (s *Store) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked()
}

func (s *Store) expiredLocked(action *model.PendingAction) bool {
	return s.ttl > 0 && s.now().Sub(action.CreatedAt) >= s.ttl
}

func (s *Store) reapLocked() int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for id, action := range s.actions {
		if s.expiredLocked(action) {
			delete(s.actions, id)
			removed++
		}
	}
	if removed > 0 {
		s.metrics.PendingActions.Set(float64(len(s.actions)))
		s.logger.Debug("Expired pending actions reaped", "count", removed)
	}
	return removed
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, action := range s.actions {
		if oldestID == "" || action.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = action.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.actions, oldestID)
		s.logger.Info("Evicted oldest pending action due to capacity limit", "correlation", oldestID)
	}
}

// RunReaper reaps expired actions on every interval until ctx is done. It
// returns immediately when actions never expire.
func (s *Store) RunReaper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}
