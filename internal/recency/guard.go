// Package recency tracks when each room last saw an action so the coordinator
// can warn about overlapping use.
package recency

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Guard records per-room interaction times in a bounded LRU
type Guard struct {
	mu     sync.Mutex
	seen   *lru.Cache[string, time.Time]
	window time.Duration
	now    func() time.Time
}

// NewGuard creates a guard holding at most capacity rooms
func NewGuard(window time.Duration, capacity int) *Guard {
	if capacity <= 0 {
		capacity = 1
	}
	cache, _ := lru.New[string, time.Time](capacity)
	return &Guard{
		seen:   cache,
		window: window,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (g *Guard) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Window returns the configured recency window
func (g *Guard) Window() time.Duration {
	return g.window
}

// WasRecentlyActive is true when roomID was touched less than the window ago.
// Exactly at the window edge it is no longer recent.
func (g *Guard) WasRecentlyActive(roomID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts, ok := g.seen.Peek(roomID)
	if !ok {
		return false
	}
	return g.now().Sub(ts) < g.window
}

// AnyRecentlyActive reports whether any of roomIDs is recent
func (g *Guard) AnyRecentlyActive(roomIDs []string) bool {
	for _, id := range roomIDs {
		if g.WasRecentlyActive(id) {
			return true
		}
	}
	return false
}

// Touch stamps roomID with the current time
func (g *Guard) Touch(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen.Add(roomID, g.now())
}

// TouchAll stamps every id with the same instant
func (g *Guard) TouchAll(roomIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for _, id := range roomIDs {
		g.seen.Add(id, now)
	}
}

// Forget drops the timestamps for rooms that left the registry
func (g *Guard) Forget(roomIDs []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range roomIDs {
		g.seen.Remove(id)
	}
}

// Len returns the number of tracked rooms
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen.Len()
}
