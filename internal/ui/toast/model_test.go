package toast

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bell/internal/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newModel(c *clock) Model {
	m := New(model.ToastBottomRight, 60)
	m.SetClock(c.now)
	return m
}

// show pushes a toast and delivers its ShowMsg.
func show(t *testing.T, m Model, n model.Notification, d time.Duration) (Model, int) {
	t.Helper()
	m, cmd := m.Push(n, d)
	require.NotNil(t, cmd)
	msg := cmd()
	sm, ok := msg.(ShowMsg)
	require.True(t, ok)
	require.Equal(t, Pending, m.Toasts()[m.Len()-1].State())
	m, _ = m.Update(sm)
	return m, sm.ID
}

func only(t *testing.T, m Model) Toast {
	t.Helper()
	require.Equal(t, 1, m.Len())
	return m.Toasts()[0]
}

func TestLifecycle(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m, id := show(t, newModel(c), model.Notification{ID: "a", Title: "Hello"}, 4*time.Second)
	assert.Equal(t, Shown, only(t, m).State())
	assert.Contains(t, m.View(), "Hello")

	gen := only(t, m).gen
	m, cmd := m.Update(ExpireMsg{ID: id, Gen: gen})
	assert.Equal(t, Hiding, only(t, m).State())
	assert.NotNil(t, cmd)

	m, _ = m.Update(RemoveMsg{ID: id, Gen: only(t, m).gen})
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "", m.View())
	assert.Equal(t, 0, m.Height())
}

func TestHoverPausesAndResumesRemainder(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m, id := show(t, newModel(c), model.Notification{ID: "a", Title: "A"}, 4*time.Second)
	firstGen := only(t, m).gen

	c.advance(1500 * time.Millisecond)
	m = m.Hover()
	assert.True(t, m.Hovered())
	assert.Equal(t, Paused, only(t, m).State())
	assert.Equal(t, 2500*time.Millisecond, only(t, m).Remaining())

	// The countdown scheduled before the pause is stale.
	m, _ = m.Update(ExpireMsg{ID: id, Gen: firstGen})
	assert.Equal(t, Paused, only(t, m).State())

	c.advance(10 * time.Second)
	m, cmd := m.Leave()
	assert.NotNil(t, cmd)
	assert.Equal(t, Shown, only(t, m).State())
	assert.Equal(t, 2500*time.Millisecond, only(t, m).Remaining(), "time spent hovering is not charged")

	m, _ = m.Update(ExpireMsg{ID: id, Gen: only(t, m).gen})
	assert.Equal(t, Hiding, only(t, m).State())
}

func TestPushWhileHoveredStartsPaused(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m := newModel(c).Hover()
	m, _ = show(t, m, model.Notification{ID: "a"}, time.Second)
	assert.Equal(t, Paused, only(t, m).State())
	assert.Equal(t, time.Second, only(t, m).Remaining())
}

func TestManualDismissRemovesViewOnly(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m, id := show(t, newModel(c), model.Notification{ID: "a"}, time.Second)
	gen := only(t, m).gen

	m = m.Dismiss(id)
	assert.Equal(t, 0, m.Len())

	// Timers that were in flight for the removed toast are no-ops.
	m, cmd := m.Update(ExpireMsg{ID: id, Gen: gen})
	assert.Nil(t, cmd)
	m, _ = m.Update(RemoveMsg{ID: id, Gen: gen + 1})
	assert.Equal(t, 0, m.Len())
}

func TestStackIsCapped(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m := newModel(c)
	for _, id := range []string{"1", "2", "3", "4"} {
		m, _ = show(t, m, model.Notification{ID: id, Title: "title-" + id}, time.Second)
	}
	require.Equal(t, maxToasts, m.Len())
	assert.Equal(t, "2", m.Toasts()[0].Notification.ID)

	m = m.DismissNewest()
	assert.Equal(t, "3", m.Toasts()[m.Len()-1].Notification.ID)
}

func TestViewOrderFollowsPosition(t *testing.T) {
	c := &clock{t: time.Unix(100, 0)}
	m := newModel(c)
	m, _ = show(t, m, model.Notification{ID: "old", Title: "older"}, time.Second)
	m, _ = show(t, m, model.Notification{ID: "new", Title: "newer"}, time.Second)

	view := m.View()
	assert.Less(t, strings.Index(view, "newer"), strings.Index(view, "older"), "bottom zone shows newest on top")

	m.SetPosition(model.ToastTopLeft)
	view = m.View()
	assert.Less(t, strings.Index(view, "older"), strings.Index(view, "newer"), "top zone shows newest at the bottom")
}
