package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bell/internal/theme"
)

// Layout manages the widget's frame dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the panel area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// Bell renders the bell glyph with its unread badge. A shaking bell is the
// visual stand-in for a silent reminder.
func Bell(unread int, shaking bool) string {
	bell := theme.IconUnread
	if shaking {
		bell = "((" + bell + "))"
	}
	if unread <= 0 {
		return bell
	}
	count := fmt.Sprint(unread)
	if unread > 99 {
		count = "99+"
	}
	return bell + " " + theme.BadgeStyle.Render(count)
}

// RenderHeader renders the top header bar: bell and title on the left,
// connection status on the right.
func (l Layout) RenderHeader(bell string, title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(bell + " " + title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom bar with keyboard hints and, when
// branded, the "powered by" mark.
func (l Layout) RenderStatusBar(hints string, branded bool) string {
	rendered := theme.StatusBarStyle.Render(hints)

	brand := ""
	if branded {
		brand = theme.StatusBarStyle.Inherit(theme.BrandStyle).Render("powered by bell")
	}

	gap := l.Width - lipgloss.Width(rendered) - lipgloss.Width(brand)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler, brand)
}

// PlaceToasts stacks the toast zone above or below the content.
func (l Layout) PlaceToasts(content string, toasts string, top bool) string {
	if toasts == "" {
		return content
	}
	if content == "" {
		return toasts
	}
	if top {
		return lipgloss.JoinVertical(lipgloss.Left, toasts, content)
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, toasts)
}

// RenderWithFrame composes a full view by vertically joining the header,
// content area, and status bar. An empty status bar is omitted.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	parts := []string{header}
	if content != "" {
		parts = append(parts, content)
	}
	if statusBar != "" {
		parts = append(parts, statusBar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
