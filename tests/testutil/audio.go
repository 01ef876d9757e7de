package testutil

import (
	"sync"

	"github.com/nhle/bell/internal/audio"
)

// CueRecorder is an audio.Player that collects cues instead of playing
// them. It is safe to call from command goroutines.
type CueRecorder struct {
	mu   sync.Mutex
	cues []audio.Cue
}

// Play records c.
func (r *CueRecorder) Play(c audio.Cue) error {
	if c == audio.CueNone {
		return nil
	}
	r.mu.Lock()
	r.cues = append(r.cues, c)
	r.mu.Unlock()
	return nil
}

// Cues returns the cues played so far.
func (r *CueRecorder) Cues() []audio.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audio.Cue(nil), r.cues...)
}
