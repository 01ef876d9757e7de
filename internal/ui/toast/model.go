// Package toast renders transient notification toasts. Each toast runs a
// small state machine (pending, shown, paused, hiding, removed) with one
// authoritative remaining duration.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/theme"
)

// State is the lifecycle phase of one toast.
type State int

const (
	Pending State = iota
	Shown
	Paused
	Hiding
	Removed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Shown:
		return "shown"
	case Paused:
		return "paused"
	case Hiding:
		return "hiding"
	default:
		return "removed"
	}
}

// HideDuration is how long a hiding toast stays on screen, dimmed, before
// it is removed.
const HideDuration = 300 * time.Millisecond

// maxToasts caps the visible stack; the oldest toast is dropped first.
const maxToasts = 3

// ShowMsg moves a pending toast on screen.
type ShowMsg struct {
	ID int
}

// ExpireMsg fires when a toast's countdown runs out. Gen must match the
// toast's current generation or the message is stale.
type ExpireMsg struct {
	ID  int
	Gen int
}

// RemoveMsg fires when the hide transition of a toast completes.
type RemoveMsg struct {
	ID  int
	Gen int
}

// Toast is one visible toast.
type Toast struct {
	ID           int
	Notification model.Notification

	state     State
	remaining time.Duration
	startedAt time.Time
	gen       int

	// style is built for this toast alone and dropped with it.
	style lipgloss.Style
}

// State returns the lifecycle phase.
func (t Toast) State() State { return t.state }

// Remaining returns the countdown left as of the last transition.
func (t Toast) Remaining() time.Duration { return t.remaining }

// Model is the toast zone.
type Model struct {
	toasts   []Toast
	nextID   int
	width    int
	position model.ToastPosition
	hovered  bool
	now      func() time.Time
}

// New creates an empty toast zone.
func New(position model.ToastPosition, width int) Model {
	return Model{
		position: position,
		width:    width,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (m *Model) SetClock(now func() time.Time) { m.now = now }

// SetWidth updates the zone width.
func (m *Model) SetWidth(width int) { m.width = width }

// SetPosition moves the zone.
func (m *Model) SetPosition(p model.ToastPosition) { m.position = p }

// Position returns where the zone is anchored.
func (m Model) Position() model.ToastPosition { return m.position }

// Toasts returns the live toasts, oldest first.
func (m Model) Toasts() []Toast { return m.toasts }

// Len returns the number of live toasts.
func (m Model) Len() int { return len(m.toasts) }

// Hovered reports whether the pointer is over the zone.
func (m Model) Hovered() bool { return m.hovered }

// Push adds a pending toast for n that will count down for d once shown.
func (m Model) Push(n model.Notification, d time.Duration) (Model, tea.Cmd) {
	m.nextID++
	t := Toast{
		ID:           m.nextID,
		Notification: n,
		state:        Pending,
		remaining:    d,
		style:        theme.ToastStyle(n.AlertLevel, m.toastWidth()),
	}

	m.toasts = append(m.toasts, t)
	if len(m.toasts) > maxToasts {
		m.toasts = append([]Toast(nil), m.toasts[len(m.toasts)-maxToasts:]...)
	}

	id := t.ID
	return m, func() tea.Msg { return ShowMsg{ID: id} }
}

// Update advances the state machine. Messages for removed toasts or old
// generations are ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ShowMsg:
		i := m.index(msg.ID)
		if i < 0 || m.toasts[i].state != Pending {
			return m, nil
		}
		if m.hovered {
			m.toasts[i].state = Paused
			return m, nil
		}
		return m, m.start(i)

	case ExpireMsg:
		i := m.index(msg.ID)
		if i < 0 || m.toasts[i].gen != msg.Gen || m.toasts[i].state != Shown {
			return m, nil
		}
		t := &m.toasts[i]
		t.state = Hiding
		t.remaining = 0
		t.gen++
		return m, removeAfter(t.ID, t.gen, HideDuration)

	case RemoveMsg:
		i := m.index(msg.ID)
		if i < 0 || m.toasts[i].gen != msg.Gen || m.toasts[i].state != Hiding {
			return m, nil
		}
		m.drop(i)
		return m, nil
	}
	return m, nil
}

// start puts toast i on screen and schedules its expiry.
func (m *Model) start(i int) tea.Cmd {
	t := &m.toasts[i]
	t.state = Shown
	t.startedAt = m.now()
	t.gen++
	id, gen := t.ID, t.gen
	return tea.Tick(t.remaining, func(time.Time) tea.Msg {
		return ExpireMsg{ID: id, Gen: gen}
	})
}

// Hover pauses every running countdown. The time already spent is taken
// off the remaining duration.
func (m Model) Hover() Model {
	if m.hovered {
		return m
	}
	m.hovered = true
	now := m.now()
	for i := range m.toasts {
		t := &m.toasts[i]
		if t.state != Shown {
			continue
		}
		t.remaining -= now.Sub(t.startedAt)
		if t.remaining < 0 {
			t.remaining = 0
		}
		t.state = Paused
		t.gen++
	}
	return m
}

// Leave resumes paused countdowns with whatever time they had left.
func (m Model) Leave() (Model, tea.Cmd) {
	if !m.hovered {
		return m, nil
	}
	m.hovered = false
	var cmds []tea.Cmd
	for i := range m.toasts {
		if m.toasts[i].state == Paused {
			cmds = append(cmds, m.start(i))
		}
	}
	return m, tea.Batch(cmds...)
}

// Dismiss removes the toast immediately. It only affects the view.
func (m Model) Dismiss(id int) Model {
	if i := m.index(id); i >= 0 {
		m.drop(i)
	}
	return m
}

// DismissNewest removes the most recent toast.
func (m Model) DismissNewest() Model {
	if len(m.toasts) == 0 {
		return m
	}
	m.drop(len(m.toasts) - 1)
	return m
}

// Clear removes every toast.
func (m Model) Clear() Model {
	m.toasts = nil
	m.hovered = false
	return m
}

func (m *Model) drop(i int) {
	m.toasts[i].state = Removed
	m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
}

func (m Model) index(id int) int {
	for i, t := range m.toasts {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func removeAfter(id, gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return RemoveMsg{ID: id, Gen: gen}
	})
}

func (m Model) toastWidth() int {
	w := m.width / 2
	if w < 24 {
		w = m.width - 2
	}
	if w < 10 {
		w = 10
	}
	return w
}

// Height returns the rows the zone occupies, zero when empty.
func (m Model) Height() int {
	view := m.View()
	if view == "" {
		return 0
	}
	return lipgloss.Height(view)
}

// View renders the stack aligned per the configured position. Newest
// toasts sit closest to the content edge.
func (m Model) View() string {
	if len(m.toasts) == 0 {
		return ""
	}

	inner := m.toastWidth() - 4
	var blocks []string
	for _, t := range m.toasts {
		if t.state == Pending {
			continue
		}
		title := ansi.Truncate(t.Notification.Title, inner, "…")
		body := ansi.Truncate(t.Notification.Text, inner, "…")

		content := theme.AlertStyle(t.Notification.AlertLevel).Render(title)
		if body != "" {
			content += "\n" + body
		}

		style := t.style
		if t.state == Hiding {
			style = style.Faint(true)
		}
		if t.state == Paused {
			style = style.BorderStyle(lipgloss.ThickBorder())
		}
		blocks = append(blocks, style.Render(content))
	}
	if len(blocks) == 0 {
		return ""
	}

	if !m.position.IsTop() {
		blocks = reverse(blocks)
	}
	stack := lipgloss.JoinVertical(alignment(m.position), blocks...)
	return lipgloss.PlaceHorizontal(m.width, alignment(m.position), stack)
}

func alignment(p model.ToastPosition) lipgloss.Position {
	switch p.Horizontal() {
	case "left":
		return lipgloss.Left
	case "center":
		return lipgloss.Center
	default:
		return lipgloss.Right
	}
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
