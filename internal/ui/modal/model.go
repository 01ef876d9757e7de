// Package modal renders blocker notifications as a centred overlay that
// must be closed explicitly. Blockers arriving while one is open queue up.
package modal

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bell/internal/keys"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/theme"
)

// ClosedMsg reports that the user closed the blocker with the given id.
type ClosedMsg struct {
	ID string
}

// OpenRequestMsg asks the parent to open the blocker's action URL.
type OpenRequestMsg struct {
	ID  string
	URL string
}

// Model is the blocker overlay.
type Model struct {
	keys   *keys.KeyMap
	queue  []model.Notification
	width  int
	height int
}

// New creates a hidden modal.
func New(keys *keys.KeyMap, width, height int) Model {
	return Model{keys: keys, width: width, height: height}
}

// SetSize updates the area the modal is centred in.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Visible reports whether a blocker is on screen.
func (m Model) Visible() bool { return len(m.queue) > 0 }

// Current returns the blocker on screen.
func (m Model) Current() (model.Notification, bool) {
	if len(m.queue) == 0 {
		return model.Notification{}, false
	}
	return m.queue[0], true
}

// Pending returns how many blockers wait behind the current one.
func (m Model) Pending() int {
	if len(m.queue) == 0 {
		return 0
	}
	return len(m.queue) - 1
}

// Show queues n. A repeated id is ignored.
func (m Model) Show(n model.Notification) Model {
	for _, q := range m.queue {
		if q.ID == n.ID {
			return m
		}
	}
	m.queue = append(m.queue, n)
	return m
}

// Drop removes id from the queue, for example after a sibling dismissed it.
func (m Model) Drop(id string) Model {
	out := m.queue[:0:0]
	for _, q := range m.queue {
		if q.ID != id {
			out = append(out, q)
		}
	}
	m.queue = out
	return m
}

// Clear hides every blocker.
func (m Model) Clear() Model {
	m.queue = nil
	return m
}

// Update handles keys while the modal is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	n, ok := m.Current()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back), key.Matches(keyMsg, m.keys.Open), key.Matches(keyMsg, m.keys.DismissToast):
		m.queue = m.queue[1:]
		id := n.ID
		return m, func() tea.Msg { return ClosedMsg{ID: id} }

	case key.Matches(keyMsg, m.keys.Link):
		if n.HasAction() {
			id, url := n.ID, n.ActionURL
			return m, func() tea.Msg { return OpenRequestMsg{ID: id, URL: url} }
		}
	}
	return m, nil
}

// View renders the current blocker centred in the area.
func (m Model) View() string {
	n, ok := m.Current()
	if !ok {
		return ""
	}

	width := m.width - 8
	if width > 60 {
		width = 60
	}
	if width < 20 {
		width = 20
	}

	title := theme.AlertStyle(model.AlertBlocker).Render(theme.IconBlocker + " " + n.Title)
	parts := []string{title}
	if n.Text != "" {
		parts = append(parts, "", n.Text)
	}

	hints := "enter/esc close"
	if n.HasAction() {
		hints = "o " + n.ButtonLabel() + " · " + hints
	}
	if p := m.Pending(); p > 0 {
		hints += " · " + pluralMore(p)
	}
	parts = append(parts, "", theme.HelpStyle.Render(hints))

	box := theme.ModalStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func pluralMore(n int) string {
	if n == 1 {
		return "1 more blocker"
	}
	return fmt.Sprintf("%d more blockers", n)
}
