package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the widget.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Entry actions
	Open     key.Binding
	Link     key.Binding
	MarkRead key.Binding
	Dismiss  key.Binding

	// Bulk actions
	MarkAllRead key.Binding
	DismissAll  key.Binding

	// Panel and toasts
	ToggleInbox  key.Binding
	DismissToast key.Binding

	// Preferences
	ToggleAudio    key.Binding
	ToggleReminder key.Binding
	CycleToast     key.Binding
	CycleDisplay   key.Binding
	Reset          key.Binding

	// Connection
	ToggleConnection key.Binding
	Refresh          key.Binding

	// Help / Back / Quit
	Help key.Binding
	Back key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Link: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "link button"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "mark all read"),
		),
		DismissAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dismiss all"),
		),
		ToggleInbox: key.NewBinding(
			key.WithKeys("i", "b"),
			key.WithHelp("i", "toggle inbox"),
		),
		DismissToast: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close toast"),
		),
		ToggleAudio: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sound"),
		),
		ToggleReminder: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reminders"),
		),
		CycleToast: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "toast position"),
		),
		CycleDisplay: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "display mode"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reset settings"),
		),
		ToggleConnection: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect/disconnect"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.ToggleInbox, k.MarkRead, k.Dismiss, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Link, k.Back, k.Quit},
		{k.MarkRead, k.Dismiss, k.MarkAllRead, k.DismissAll, k.DismissToast},
		{k.ToggleAudio, k.ToggleReminder, k.CycleToast, k.CycleDisplay, k.Reset},
		{k.ToggleInbox, k.ToggleConnection, k.Refresh, k.Help},
	}
}
