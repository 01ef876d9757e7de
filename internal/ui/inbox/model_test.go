package inbox

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bell/internal/keys"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/theme"
)

func newPanel(now time.Time) Model {
	m := New(keys.DefaultKeyMap(), 50, 20)
	m.SetClock(func() time.Time { return now })
	return m
}

func press(m Model, k string) (Model, tea.Msg) {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m, cmd := m.Update(msg)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestRelativeTimersFollowEntries(t *testing.T) {
	now := time.Unix(10_000, 0)
	m := newPanel(now)

	cmd := m.SetEntries([]model.Notification{
		{ID: "a", Title: "A", Timestamp: now.Add(-2 * time.Minute).Unix()},
		{ID: "b", Title: "B", Timestamp: now.Add(-3 * time.Hour).Unix()},
	})
	assert.NotNil(t, cmd)
	assert.Equal(t, 2, m.Timers())
	assert.Equal(t, "2 minutes ago", m.Label("a"))
	assert.Equal(t, "3 hours ago", m.Label("b"))

	genA := m.clocks["a"]

	// Rebuilding with the same ids does not start duplicate timers.
	assert.Nil(t, m.SetEntries(m.Entries()))
	assert.Equal(t, 2, m.Timers())

	// Removing an entry clears its timer; its pending tick becomes a no-op.
	m.SetEntries([]model.Notification{{ID: "b", Title: "B", Timestamp: now.Add(-3 * time.Hour).Unix()}})
	assert.Equal(t, 1, m.Timers())
	m, cmd = m.Update(RelativeTickMsg{ID: "a", Gen: genA})
	assert.Nil(t, cmd)
	assert.Empty(t, m.Label("a"))
}

func TestRelativeTickRecomputesAndReschedules(t *testing.T) {
	now := time.Unix(10_000, 0)
	m := newPanel(now)
	m.SetEntries([]model.Notification{{ID: "a", Timestamp: now.Add(-time.Minute).Unix()}})
	assert.Equal(t, "1 minute ago", m.Label("a"))

	later := now.Add(10 * time.Minute)
	m.SetClock(func() time.Time { return later })
	m, cmd := m.Update(RelativeTickMsg{ID: "a", Gen: m.clocks["a"]})
	assert.NotNil(t, cmd, "the timer keeps running while the entry exists")
	assert.Equal(t, "11 minutes ago", m.Label("a"))
}

func TestActionsEmitRequests(t *testing.T) {
	m := newPanel(time.Unix(0, 0))
	m.SetEntries([]model.Notification{
		{ID: "a", Title: "A", ActionURL: "https://example.com/a"},
		{ID: "b", Title: "B", Read: true, ActionURL: "https://example.com/b", LinkButton: true},
	})

	m, msg := press(m, "m")
	assert.Equal(t, MarkReadRequestMsg{ID: "a"}, msg)

	m, msg = press(m, "enter")
	assert.Equal(t, OpenRequestMsg{ID: "a", URL: "https://example.com/a"}, msg)

	m, msg = press(m, "o")
	assert.Nil(t, msg, "no standalone button on a")

	m, _ = press(m, "j")
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", sel.ID)

	m, msg = press(m, "m")
	assert.Nil(t, msg, "mark read is disabled once read")

	m, msg = press(m, "enter")
	assert.Nil(t, msg, "the body is not a link when a button is configured")

	m, msg = press(m, "o")
	assert.Equal(t, OpenRequestMsg{ID: "b", URL: "https://example.com/b"}, msg)

	m, msg = press(m, "d")
	assert.Equal(t, DismissRequestMsg{ID: "b"}, msg)

	_, msg = press(m, "esc")
	assert.Equal(t, CloseMsg{}, msg)
}

func TestCursorSurvivesRebuild(t *testing.T) {
	m := newPanel(time.Unix(0, 0))
	m.SetEntries([]model.Notification{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	m, _ = press(m, "j")
	m, _ = press(m, "j")

	m.SetEntries([]model.Notification{{ID: "new"}, {ID: "a"}, {ID: "b"}, {ID: "c"}})
	sel, _ := m.Selected()
	assert.Equal(t, "c", sel.ID)

	m.SetEntries([]model.Notification{{ID: "a"}})
	sel, _ = m.Selected()
	assert.Equal(t, "a", sel.ID)

	m.SetEntries(nil)
	_, ok := m.Selected()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "caught up")
}

func TestIcon(t *testing.T) {
	assert.Equal(t, theme.IconUnread, Icon(model.Notification{}))
	assert.Equal(t, theme.IconRead, Icon(model.Notification{Read: true}))
	assert.Equal(t, theme.IconBlocker, Icon(model.Notification{AlertLevel: model.AlertBlocker, Read: true}))
}
