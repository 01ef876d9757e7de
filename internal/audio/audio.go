// Package audio decides which cue a widget event should play. Playback
// itself is delegated to a Player.
package audio

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/bell/internal/model"
)

// Cue is a sound (or silent stand-in) the widget can emit.
type Cue int

const (
	CueNone Cue = iota
	CueAlert
	CueBlocker
	CueReminder
	CueSilentReminder
)

func (c Cue) String() string {
	switch c {
	case CueAlert:
		return "alert"
	case CueBlocker:
		return "blocker"
	case CueReminder:
		return "reminder"
	case CueSilentReminder:
		return "silent-reminder"
	default:
		return "none"
	}
}

// Silent reports whether the cue is rendered visually instead of audibly.
func (c Cue) Silent() bool {
	return c == CueSilentReminder
}

// Beeps returns how many times the cue rings.
func (c Cue) Beeps() int {
	switch c {
	case CueAlert:
		return 1
	case CueReminder:
		return 2
	case CueBlocker:
		return 3
	default:
		return 0
	}
}

// ForNotification returns the cue for a newly delivered notification.
// Every cue outside the reminder family is gated by AudioAlert.
func ForNotification(cfg model.Config, level model.AlertLevel) Cue {
	if !cfg.AudioAlert {
		return CueNone
	}
	if level.IsBlocker() {
		return CueBlocker
	}
	return CueAlert
}

// ForReminder returns the periodic reminder cue. Reminders need
// AudioReminder and at least one unread notification; AudioAlert picks
// between the audible and the silent double cue.
func ForReminder(cfg model.Config, unread int) Cue {
	if !cfg.AudioReminder || unread <= 0 {
		return CueNone
	}
	if cfg.AudioAlert {
		return CueReminder
	}
	return CueSilentReminder
}

// Player emits cues.
type Player interface {
	Play(c Cue) error
}

// BellPlayer rings the terminal bell (BEL) on w. Silent cues write nothing;
// the widget renders them as a shaking bell instead.
type BellPlayer struct {
	w   io.Writer
	gap time.Duration
}

// NewBellPlayer returns a player writing to w.
func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w, gap: 120 * time.Millisecond}
}

// Play rings the bell Beeps() times.
func (p *BellPlayer) Play(c Cue) error {
	n := c.Beeps()
	if n == 0 {
		return nil
	}
	if p.gap <= 0 {
		_, err := io.WriteString(p.w, strings.Repeat("\a", n))
		return err
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			time.Sleep(p.gap)
		}
		if _, err := io.WriteString(p.w, "\a"); err != nil {
			return fmt.Errorf("ringing bell: %w", err)
		}
	}
	return nil
}
