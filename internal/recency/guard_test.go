package recency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(capacity int) (*Guard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGuard(time.Hour, capacity)
	g.SetClock(clock.Now)
	return g, clock
}

func TestWasRecentlyActive_Window(t *testing.T) {
	g, clock := newTestGuard(16)

	assert.False(t, g.WasRecentlyActive("a"))

	g.Touch("a")
	assert.True(t, g.WasRecentlyActive("a"))

	clock.Advance(time.Hour - time.Nanosecond)
	assert.True(t, g.WasRecentlyActive("a"), "just inside the window")

	clock.Advance(time.Nanosecond)
	assert.False(t, g.WasRecentlyActive("a"), "exactly at the window edge")

	clock.Advance(time.Minute)
	assert.False(t, g.WasRecentlyActive("a"), "past the window")
}

func TestAnyRecentlyActive(t *testing.T) {
	g, clock := newTestGuard(16)

	g.Touch("a")
	clock.Advance(2 * time.Hour)
	g.Touch("b")

	assert.True(t, g.AnyRecentlyActive([]string{"a", "b"}))
	assert.False(t, g.AnyRecentlyActive([]string{"a", "c"}))
	assert.False(t, g.AnyRecentlyActive(nil))
}

func TestTouchAll_And_Forget(t *testing.T) {
	g, _ := newTestGuard(16)

	g.TouchAll([]string{"a", "b", "c"})
	assert.Equal(t, 3, g.Len())

	g.Forget([]string{"b", "missing"})
	assert.Equal(t, 2, g.Len())
	assert.False(t, g.WasRecentlyActive("b"))
	assert.True(t, g.WasRecentlyActive("a"))
}

func TestGuard_BoundedCapacity(t *testing.T) {
	g, _ := newTestGuard(2)

	g.Touch("a")
	g.Touch("b")
	g.Touch("c")

	assert.Equal(t, 2, g.Len())
	assert.False(t, g.WasRecentlyActive("a"), "oldest entry evicted")
	assert.True(t, g.WasRecentlyActive("c"))
}
