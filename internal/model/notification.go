package model

import "time"

// AlertLevel controls how a notification is styled and delivered.
type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertPrimary AlertLevel = "primary"
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
	AlertBlocker AlertLevel = "blocker"
)

// IsBlocker reports whether the level forces modal presentation.
func (l AlertLevel) IsBlocker() bool {
	return l == AlertBlocker
}

// Notification is a single entry pushed or fetched from the notification
// service for a subscriber and location.
type Notification struct {
	// ID is unique within a subscriber+location scope.
	ID string `json:"id"`

	Title string `json:"title"`
	Text  string `json:"text"`

	// AlertLevel is empty or "none" for neutral styling.
	AlertLevel AlertLevel `json:"alertLevel,omitempty"`

	// Read only ever moves from false to true.
	Read bool `json:"read"`

	// Dismissed is only meaningful on merge input from the server; a
	// dismissed notification is removed from the live set.
	Dismissed bool `json:"dismissed,omitempty"`

	// ActionURL is the navigation target when the body or link button
	// is activated.
	ActionURL string `json:"actionUrl,omitempty"`

	// LinkButton renders a standalone button instead of a clickable body.
	LinkButton      bool   `json:"linkButton,omitempty"`
	LinkButtonLabel string `json:"linkButtonLabel,omitempty"`

	// Timestamp is the server-assigned creation time in epoch seconds.
	// It is used for display only, never for merge ordering.
	Timestamp int64 `json:"_ts"`
}

// CreatedAt returns the server timestamp as a time.Time.
func (n Notification) CreatedAt() time.Time {
	return time.Unix(n.Timestamp, 0)
}

// HasAction reports whether activating the notification navigates somewhere.
func (n Notification) HasAction() bool {
	return n.ActionURL != ""
}

// ButtonLabel returns the label for the standalone link button.
func (n Notification) ButtonLabel() string {
	if n.LinkButtonLabel != "" {
		return n.LinkButtonLabel
	}
	return "Open"
}
