package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/metrics"
	"github.com/sgerhart/roomlink/internal/model"
)

func newTestRegistry() *Registry {
	return New(logging.Discard(), metrics.NewNoop())
}

func TestRegister_LastWriteWins(t *testing.T) {
	reg := newTestRegistry()

	first, err := reg.Register("a", "Room A", "10.0.0.5")
	require.NoError(t, err)

	_, err = reg.Register("a", "Room A renamed", "10.0.0.9")
	require.NoError(t, err)

	rooms := reg.List()
	require.Len(t, rooms, 1)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "10.0.0.9", rooms[0].Address)
	assert.Equal(t, "Room A renamed", rooms[0].Name)
	assert.Equal(t, first.RegisteredAt, rooms[0].RegisteredAt)
}

func TestRegister_DerivesID(t *testing.T) {
	reg := newTestRegistry()

	entry, err := reg.Register("", "Small Room", "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, "smallroom", entry.ID)

	_, ok := reg.Get("smallroom")
	assert.True(t, ok)
}

func TestRegister_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		room    string
		address string
	}{
		{name: "missing name", id: "a", address: "10.0.0.5"},
		{name: "missing address", id: "a", room: "Room A"},
		{name: "blank name", id: "a", room: "   ", address: "10.0.0.5"},
		{name: "reserved local id", id: "local", room: "Local", address: "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			_, err := reg.Register(tt.id, tt.room, tt.address)
			assert.True(t, errors.Is(err, ErrInvalidRegistration))
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestList_SortedByID(t *testing.T) {
	reg := newTestRegistry()
	for _, id := range []string{"c", "a", "b"} {
		_, err := reg.Register(id, "Room "+id, "10.0.0."+id)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, reg.IDs())
}

func TestRemove_Idempotent(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Register("a", "Room A", "10.0.0.5")
	require.NoError(t, err)

	reg.Remove("a")
	reg.Remove("a")
	reg.Remove("never-registered")

	assert.Equal(t, 0, reg.Len())
}

func TestRemoveAll_NotifiesListeners(t *testing.T) {
	reg := newTestRegistry()
	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Register(id, "Room "+id, "host-"+id)
		require.NoError(t, err)
	}

	var notified []string
	reg.OnRemove(func(ids []string) { notified = append(notified, ids...) })

	removed := reg.RemoveAll([]string{"a", "c", "zzz"})
	assert.Equal(t, []string{"a", "c"}, removed)
	assert.Equal(t, []string{"a", "c"}, notified)
	assert.Equal(t, []string{"b"}, reg.IDs())

	assert.Nil(t, reg.RemoveAll([]string{"zzz"}))
}

func TestRegister_RefreshesLastSeen(t *testing.T) {
	reg := newTestRegistry()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	_, err := reg.Register("a", "Room A", "10.0.0.5")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	entry, err := reg.Register("a", "Room A", "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, now, entry.LastSeen)
	assert.Equal(t, now.Add(-time.Minute), entry.RegisteredAt)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("room%d", i%5)
			_, _ = reg.Register(id, id, fmt.Sprintf("10.0.0.%d", i))
			_ = reg.List()
			if i%7 == 0 {
				reg.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, reg.Len(), 5)
}

func TestRegister_RejectsReservedIDs(t *testing.T) {
	reg := newTestRegistry()
	reg.Reserve("main", "mainroom")

	for _, id := range []string{"main", "mainroom"} {
		_, err := reg.Register(id, "Impostor", "10.0.0.5")
		assert.ErrorIs(t, err, ErrInvalidRegistration, id)
	}

	_, err := reg.Register("", "Main Room", "10.0.0.5")
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.Register("", "Side Room", "10.0.0.6")
	assert.NoError(t, err)
}

func TestRemoveStale_KeepsRefreshedEntries(t *testing.T) {
	reg := newTestRegistry()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	var notified []string
	reg.OnRemove(func(ids []string) { notified = append(notified, ids...) })

	a, err := reg.Register("a", "Room A", "old-host")
	require.NoError(t, err)
	b, err := reg.Register("b", "Room B", "host-b")
	require.NoError(t, err)

	// a re-registers at a new address after the snapshot was taken
	now = now.Add(time.Second)
	_, err = reg.Register("a", "Room A", "new-host")
	require.NoError(t, err)

	removed := reg.RemoveStale([]model.RoomEntry{a, b, {ID: "ghost"}})
	assert.Equal(t, []string{"b"}, removed)
	assert.Equal(t, []string{"b"}, notified)

	entry, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new-host", entry.Address)
}

func TestRemoveStale_SameAddressRefresh(t *testing.T) {
	reg := newTestRegistry()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	a, err := reg.Register("a", "Room A", "host-a")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = reg.Register("a", "Room A", "host-a")
	require.NoError(t, err)

	assert.Empty(t, reg.RemoveStale([]model.RoomEntry{a}))
	assert.Equal(t, 1, reg.Len())
}
