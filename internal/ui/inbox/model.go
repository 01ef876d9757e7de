// Package inbox renders the scrollable notification history panel. It is a
// pure projection of the snapshot it is given; every mutation is requested
// from the parent through messages.
package inbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/nhle/bell/internal/keys"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/theme"
)

// RelativeRefresh is how often each entry's relative-time footer is
// recomputed.
const RelativeRefresh = 5 * time.Second

// MarkReadRequestMsg asks the parent to mark an entry read.
type MarkReadRequestMsg struct {
	ID string
}

// DismissRequestMsg asks the parent to dismiss an entry.
type DismissRequestMsg struct {
	ID string
}

// OpenRequestMsg asks the parent to open an action URL.
type OpenRequestMsg struct {
	ID  string
	URL string
}

// CloseMsg asks the parent to hide the panel.
type CloseMsg struct{}

// RelativeTickMsg recomputes the relative time of one entry. Ticks for
// removed entries or older generations are dropped, which is how an
// entry's timer is cleared.
type RelativeTickMsg struct {
	ID  string
	Gen int
}

// Model is the inbox panel.
type Model struct {
	keys     *keys.KeyMap
	viewport viewport.Model
	entries  []model.Notification
	cursor   int
	width    int
	height   int
	now      func() time.Time

	clocks  map[string]int
	labels  map[string]string
	nextGen int
	offsets []int
}

// New creates an empty panel.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		keys:     keys,
		viewport: vp,
		width:    width,
		height:   height,
		now:      time.Now,
		clocks:   make(map[string]int),
		labels:   make(map[string]string),
	}
}

// SetClock replaces the time source.
func (m *Model) SetClock(now func() time.Time) { m.now = now }

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.render()
}

// Entries returns the rendered snapshot.
func (m Model) Entries() []model.Notification { return m.entries }

// Selected returns the entry under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return model.Notification{}, false
	}
	return m.entries[m.cursor], true
}

// Label returns the relative-time label of id.
func (m Model) Label(id string) string { return m.labels[id] }

// Timers returns the number of live relative-time timers.
func (m Model) Timers() int { return len(m.clocks) }

// SetEntries rebuilds the panel from a fresh snapshot. New entries get a
// relative-time timer; entries that disappeared lose theirs.
func (m *Model) SetEntries(entries []model.Notification) tea.Cmd {
	selectedID := ""
	if sel, ok := m.Selected(); ok {
		selectedID = sel.ID
	}

	present := make(map[string]bool, len(entries))
	var cmds []tea.Cmd
	for _, n := range entries {
		present[n.ID] = true
		if _, ok := m.clocks[n.ID]; ok {
			continue
		}
		m.nextGen++
		m.clocks[n.ID] = m.nextGen
		m.labels[n.ID] = m.relative(n)
		cmds = append(cmds, relativeTick(n.ID, m.nextGen))
	}
	for id := range m.clocks {
		if !present[id] {
			delete(m.clocks, id)
			delete(m.labels, id)
		}
	}

	m.entries = entries
	m.cursor = 0
	for i, n := range entries {
		if n.ID == selectedID {
			m.cursor = i
			break
		}
	}
	m.clampCursor()
	m.render()
	return tea.Batch(cmds...)
}

func relativeTick(id string, gen int) tea.Cmd {
	return tea.Tick(RelativeRefresh, func(time.Time) tea.Msg {
		return RelativeTickMsg{ID: id, Gen: gen}
	})
}

func (m Model) relative(n model.Notification) string {
	if n.Timestamp == 0 {
		return ""
	}
	return humanize.RelTime(n.CreatedAt(), m.now(), "ago", "from now")
}

// Update handles key and timer messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RelativeTickMsg:
		if gen, ok := m.clocks[msg.ID]; !ok || gen != msg.Gen {
			return m, nil
		}
		for _, n := range m.entries {
			if n.ID == msg.ID {
				m.labels[n.ID] = m.relative(n)
				break
			}
		}
		m.render()
		return m, relativeTick(msg.ID, msg.Gen)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
		m.render()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
		m.render()
		return m, nil

	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }
	}

	n, ok := m.Selected()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Open):
		// The body is only a link when no standalone button is configured.
		if n.HasAction() && !n.LinkButton {
			return m, open(n)
		}

	case key.Matches(msg, m.keys.Link):
		if n.HasAction() && n.LinkButton {
			return m, open(n)
		}

	case key.Matches(msg, m.keys.MarkRead):
		if !n.Read {
			id := n.ID
			return m, func() tea.Msg { return MarkReadRequestMsg{ID: id} }
		}

	case key.Matches(msg, m.keys.Dismiss):
		id := n.ID
		return m, func() tea.Msg { return DismissRequestMsg{ID: id} }
	}
	return m, nil
}

func open(n model.Notification) tea.Cmd {
	return func() tea.Msg { return OpenRequestMsg{ID: n.ID, URL: n.ActionURL} }
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.entries) {
		m.cursor = len(m.entries) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// render rebuilds the viewport content and keeps the cursor visible.
func (m *Model) render() {
	if len(m.entries) == 0 {
		m.offsets = nil
		m.viewport.SetContent(theme.DimmedStyle.Render("You're all caught up."))
		m.viewport.GotoTop()
		return
	}

	var b strings.Builder
	m.offsets = m.offsets[:0]
	line := 0
	for i, n := range m.entries {
		block := m.renderEntry(n, i == m.cursor)
		m.offsets = append(m.offsets, line)
		line += lipgloss.Height(block)
		b.WriteString(block)
		if i < len(m.entries)-1 {
			b.WriteString("\n")
		}
	}
	m.viewport.SetContent(b.String())

	top := m.offsets[m.cursor]
	bottom := line
	if m.cursor+1 < len(m.offsets) {
		bottom = m.offsets[m.cursor+1]
	}
	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom > m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(bottom - m.viewport.Height)
	}
}

// Icon returns the glyph for n.
func Icon(n model.Notification) string {
	switch {
	case n.AlertLevel.IsBlocker():
		return theme.IconBlocker
	case n.Read:
		return theme.IconRead
	default:
		return theme.IconUnread
	}
}

func (m Model) renderEntry(n model.Notification, selected bool) string {
	inner := m.width - 6
	if inner < 10 {
		inner = 10
	}

	title := ansi.Truncate(n.Title, inner-3, "…")
	titleStyle := theme.AlertStyle(n.AlertLevel)
	if n.Read {
		titleStyle = titleStyle.Bold(false)
	}
	head := Icon(n) + " " + titleStyle.Render(title)

	var lines []string
	lines = append(lines, head)

	if n.Text != "" {
		body := lipgloss.NewStyle().Width(inner).Render(n.Text)
		if n.HasAction() && !n.LinkButton {
			body = theme.ButtonStyle.Width(inner).Render(n.Text)
		}
		lines = append(lines, body)
	}

	var actions []string
	if label := m.labels[n.ID]; label != "" {
		actions = append(actions, theme.DimmedStyle.Render(label))
	}
	if n.Read {
		actions = append(actions, theme.DisabledButtonStyle.Render("[read]"))
	} else {
		actions = append(actions, theme.ButtonStyle.Render("[m] mark read"))
	}
	actions = append(actions, theme.ButtonStyle.Render("[d] dismiss"))
	if n.HasAction() && n.LinkButton {
		actions = append(actions, theme.ButtonStyle.Render(fmt.Sprintf("[o] %s", n.ButtonLabel())))
	}
	lines = append(lines, strings.Join(actions, " "))

	block := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if selected {
		return theme.SelectedItemStyle.Render(block)
	}
	return theme.ListItemStyle.Render(block)
}

// View renders the panel.
func (m Model) View() string {
	return m.viewport.View()
}
