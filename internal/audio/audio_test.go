package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/bell/internal/model"
)

func TestForNotification(t *testing.T) {
	tests := []struct {
		name  string
		audio bool
		level model.AlertLevel
		want  Cue
	}{
		{"muted", false, model.AlertInfo, CueNone},
		{"muted blocker", false, model.AlertBlocker, CueNone},
		{"alert", true, model.AlertWarning, CueAlert},
		{"neutral", true, "", CueAlert},
		{"blocker", true, model.AlertBlocker, CueBlocker},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.Config{AudioAlert: tc.audio}
			assert.Equal(t, tc.want, ForNotification(cfg, tc.level))
		})
	}
}

func TestForReminder(t *testing.T) {
	tests := []struct {
		name     string
		reminder bool
		audio    bool
		unread   int
		want     Cue
	}{
		{"reminders off", false, true, 3, CueNone},
		{"nothing unread", true, true, 0, CueNone},
		{"audible", true, true, 1, CueReminder},
		{"silent", true, false, 1, CueSilentReminder},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.Config{AudioReminder: tc.reminder, AudioAlert: tc.audio}
			assert.Equal(t, tc.want, ForReminder(cfg, tc.unread))
		})
	}
}

func TestBellPlayerRingsPerCue(t *testing.T) {
	var buf bytes.Buffer
	p := &BellPlayer{w: &buf}

	assert.NoError(t, p.Play(CueReminder))
	assert.Equal(t, "\a\a", buf.String())

	buf.Reset()
	assert.NoError(t, p.Play(CueSilentReminder))
	assert.Empty(t, buf.String())
}
