// Package inbox holds the in-memory set of notifications for the current
// session together with its unread and total counters.
package inbox

import (
	"sort"
	gosync "sync"

	"github.com/nhle/bell/internal/model"
)

// Store is the single owner of the notification map. Counters are only
// ever adjusted by the same call that mutates the map.
type Store struct {
	mu     gosync.RWMutex
	items  map[string]model.Notification
	unread int
	total  int
}

// New returns an empty store.
func New() *Store {
	return &Store{items: make(map[string]model.Notification)}
}

// Merge combines a local set with a remote set. Remote entries win on
// content; a remote entry flagged as dismissed removes the id. Once read
// locally, an entry stays read.
func Merge(local, remote []model.Notification) []model.Notification {
	byID := make(map[string]model.Notification, len(local)+len(remote))
	for _, n := range local {
		n.Dismissed = false
		byID[n.ID] = n
	}

	for _, r := range remote {
		if r.Dismissed {
			delete(byID, r.ID)
			continue
		}
		if prev, ok := byID[r.ID]; ok && prev.Read {
			r.Read = true
		}
		byID[r.ID] = r
	}

	out := make([]model.Notification, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	return out
}

// Add inserts n keyed by id. Adding an id that is already present replaces
// the entry and adjusts counters for the difference.
func (s *Store) Add(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.Dismissed = false
	if prev, ok := s.items[n.ID]; ok {
		s.dropLocked(prev)
	}
	s.items[n.ID] = n
	s.total++
	if !n.Read {
		s.unread++
	}
}

// Remove deletes id and reports whether it was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok {
		return false
	}
	delete(s.items, id)
	s.dropLocked(n)
	return true
}

// MarkRead flips id to read. It reports whether anything changed; marking
// an unknown or already read entry is a no-op.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok || n.Read {
		return false
	}
	n.Read = true
	s.items[id] = n
	s.unread = clamp(s.unread - 1)
	return true
}

// Replace swaps the whole set, typically with the result of Merge.
func (s *Store) Replace(ns []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(ns)
}

func (s *Store) replaceLocked(ns []model.Notification) {
	s.items = make(map[string]model.Notification, len(ns))
	s.unread, s.total = 0, 0
	for _, n := range ns {
		n.Dismissed = false
		if prev, ok := s.items[n.ID]; ok {
			s.dropLocked(prev)
		}
		s.items[n.ID] = n
		s.total++
		if !n.Read {
			s.unread++
		}
	}
}

// MergeRemote merges remote into the current set under a single lock, so
// concurrent Add or MarkRead calls are never lost.
func (s *Store) MergeRemote(remote []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := make([]model.Notification, 0, len(s.items))
	for _, n := range s.items {
		local = append(local, n)
	}
	s.replaceLocked(Merge(local, remote))
}

// dropLocked adjusts counters for an entry leaving the map.
func (s *Store) dropLocked(n model.Notification) {
	s.total = clamp(s.total - 1)
	if !n.Read {
		s.unread = clamp(s.unread - 1)
	}
}

// Get returns the entry for id.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.items[id]
	return n, ok
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Unread returns the number of unread entries.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Total returns the number of entries.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Len returns the size of the underlying map.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns every entry, newest first.
func (s *Store) Snapshot() []model.Notification {
	s.mu.RLock()
	out := make([]model.Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n)
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out
}

// UnreadIDs returns the ids of unread entries, newest first.
func (s *Store) UnreadIDs() []string {
	var ids []string
	for _, n := range s.Snapshot() {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// IDs returns every id, newest first.
func (s *Store) IDs() []string {
	snap := s.Snapshot()
	ids := make([]string, len(snap))
	for i, n := range snap {
		ids[i] = n.ID
	}
	return ids
}

// SortNewestFirst orders ns by timestamp descending, breaking ties by id.
func SortNewestFirst(ns []model.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Timestamp != ns[j].Timestamp {
			return ns[i].Timestamp > ns[j].Timestamp
		}
		return ns[i].ID < ns[j].ID
	})
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
