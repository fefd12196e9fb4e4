// Package registry keeps the set of remote rooms the coordinator can route to.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/model"
)

// ErrInvalidRegistration is returned when a registration lacks a name or address
var ErrInvalidRegistration = errors.New("invalid registration")

// RemovalListener is notified with the IDs dropped from the registry
type RemovalListener func(ids []string)

// Registry is the coordinator's in-memory room table
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*model.RoomEntry
	listeners []RemovalListener
	reserved  map[string]struct{}
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates an empty registry
func New(logger *logging.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		rooms:    make(map[string]*model.RoomEntry),
		reserved: map[string]struct{}{model.LocalTarget: {}},
		logger:   logger.WithComponent("registry"),
		metrics:  m,
		now:      time.Now,
	}
}

// Reserve marks ids as unavailable to workers. Later registrations with a
// reserved id are rejected.
func (r *Registry) Reserve(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			r.reserved[id] = struct{}{}
		}
	}
}

// OnRemove adds a listener fired after entries are removed
func (r *Registry) OnRemove(fn RemovalListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Register inserts or overwrites the entry keyed by id. An empty id is
// derived from name.
func (r *Registry) Register(id, name, address string) (model.RoomEntry, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" || address == "" {
		r.metrics.RegistrationsFailed.Inc()
		r.logger.LogRegistryEvent("registration_rejected", "name", name, "address", address)
		return model.RoomEntry{}, fmt.Errorf("%w: name and address are required", ErrInvalidRegistration)
	}
	if id == "" {
		id = model.RoomID(name)
	}

	now := r.now()

	r.mu.Lock()
	if _, taken := r.reserved[id]; taken || id == "" {
		r.mu.Unlock()
		r.metrics.RegistrationsFailed.Inc()
		r.logger.LogRegistryEvent("registration_rejected", "name", name, "id", id)
		return model.RoomEntry{}, fmt.Errorf("%w: unusable room id %q", ErrInvalidRegistration, id)
	}
	entry, exists := r.rooms[id]
	if !exists {
		entry = &model.RoomEntry{ID: id, RegisteredAt: now}
		r.rooms[id] = entry
	}
	entry.Name = name
	entry.Address = address
	entry.LastSeen = now
	snapshot := *entry
	count := len(r.rooms)
	r.mu.Unlock()

	r.metrics.RegistrationsTotal.Inc()
	r.metrics.RoomsRegistered.Set(float64(count))
	if exists {
		r.logger.LogRegistryEvent("room_refreshed", "room_id", id, "address", address)
	} else {
		r.logger.LogRegistryEvent("room_registered", "room_id", id, "name", name, "address", address)
	}

	return snapshot, nil
}

// List returns a snapshot of every entry ordered by ID
func (r *Registry) List() []model.RoomEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]model.RoomEntry, 0, len(r.rooms))
	for _, entry := range r.rooms {
		rooms = append(rooms, *entry)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// IDs returns the registered room IDs ordered
func (r *Registry) IDs() []string {
	rooms := r.List()
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	return ids
}

// Get looks up a single entry
func (r *Registry) Get(id string) (model.RoomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[id]
	if !ok {
		return model.RoomEntry{}, false
	}
	return *entry, true
}

// Len returns the number of registered rooms
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Remove drops id; absent ids are ignored
func (r *Registry) Remove(id string) {
	r.RemoveAll([]string{id})
}

// RemoveAll drops every listed id in one critical section and returns the
// ids that were actually present
func (r *Registry) RemoveAll(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return r.removeWhere(ids, func(*model.RoomEntry) bool { return true })
}

// RemoveStale drops each listed entry only if the registry still holds that
// same registration. Entries refreshed since the snapshot was taken are kept.
func (r *Registry) RemoveStale(snapshots []model.RoomEntry) []string {
	if len(snapshots) == 0 {
		return nil
	}

	seen := make(map[string]model.RoomEntry, len(snapshots))
	ids := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		seen[snap.ID] = snap
		ids = append(ids, snap.ID)
	}

	return r.removeWhere(ids, func(current *model.RoomEntry) bool {
		snap := seen[current.ID]
		return current.Address == snap.Address && current.LastSeen.Equal(snap.LastSeen)
	})
}

func (r *Registry) removeWhere(ids []string, match func(*model.RoomEntry) bool) []string {
	r.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.rooms[id]; ok && match(entry) {
			delete(r.rooms, id)
			removed = append(removed, id)
		}
	}
	count := len(r.rooms)
	listeners := append([]RemovalListener(nil), r.listeners...)
	r.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	r.metrics.RoomsRegistered.Set(float64(count))
	for _, id := range removed {
		r.logger.LogRegistryEvent("room_removed", "room_id", id)
	}
	for _, fn := range listeners {
		fn(removed)
	}
	return removed
}
