package theme

import (
	gosync "sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bell/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Glyphs for notification states.
const (
	IconUnread  = "🔔"
	IconRead    = "🔕"
	IconBlocker = "⚠"
)

// HeaderStyle is used for the widget header bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom key hint bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps the inbox and help panels.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for inbox entries.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused inbox entry.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders secondary text such as timestamps.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BadgeStyle renders the unread counter next to the bell.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// ButtonStyle renders an enabled inline action.
var ButtonStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Underline(true)

// DisabledButtonStyle renders an action that cannot be used.
var DisabledButtonStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle)

// BrandStyle renders the "powered by" footer.
var BrandStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Faint(true)

// AlertColor maps an alert level to its accent color. Unknown levels are
// neutral.
func AlertColor(level model.AlertLevel) lipgloss.TerminalColor {
	switch level {
	case model.AlertPrimary:
		return ColorBlue
	case model.AlertInfo:
		return ColorMagenta
	case model.AlertSuccess:
		return ColorGreen
	case model.AlertWarning:
		return ColorYellow
	case model.AlertError:
		return ColorOrange
	case model.AlertBlocker:
		return ColorRed
	default:
		return ColorGray
	}
}

// AlertStyle returns a bold style in the accent color of level.
func AlertStyle(level model.AlertLevel) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(AlertColor(level))
}

// ToastStyle returns the bordered box used for one toast.
func ToastStyle(level model.AlertLevel, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AlertColor(level)).
		Padding(0, 1).
		Width(width)
}

// ModalStyle returns the frame of the blocker modal.
func ModalStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ColorRed).
		Padding(1, 2).
		Width(width)
}

var (
	detectOnce   gosync.Once
	detectedDark bool
)

// ApplyDisplayMode switches the adaptive colors. Auto restores whatever the
// terminal reported at startup.
func ApplyDisplayMode(mode model.DisplayMode) {
	detectOnce.Do(func() {
		detectedDark = lipgloss.HasDarkBackground()
	})

	switch mode {
	case model.DisplayLight:
		lipgloss.SetHasDarkBackground(false)
	case model.DisplayDark:
		lipgloss.SetHasDarkBackground(true)
	default:
		lipgloss.SetHasDarkBackground(detectedDark)
	}
}
