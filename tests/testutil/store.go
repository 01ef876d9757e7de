package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nhle/bell/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied,
// scoped to sessionID. It automatically closes the store when the test
// completes.
func NewTestStore(t *testing.T, sessionID string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", sessionID)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewFileStore opens a SQLiteStore backed by a file in a temp directory,
// for tests that need real concurrent connections.
func NewFileStore(t *testing.T, sessionID string) (*store.SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bell.db")
	s, err := store.NewSQLiteStore(path, sessionID)
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing file store: %v", err)
		}
	})

	return s, path
}
