package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/bell/internal/model"
)

// settingsKey is the single global key the durable settings live under.
const settingsKey = "widget"

// busyTimeout is how long a write waits for a lock held elsewhere.
const busyTimeout = 5 * time.Second

// SQLiteStore implements the Store interface using a local SQLite database.
// Session-scoped rows are keyed by the session id the store was opened with.
type SQLiteStore struct {
	db        *sqlx.DB
	sessionID string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath, sessionID string) (*SQLiteStore, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection serializes writers; an in-memory database also only
	// exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Other widget processes may hold the write lock briefly.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, sessionID: sessionID}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SessionID returns the session the cache rows are scoped to.
func (s *SQLiteStore) SessionID() string {
	return s.sessionID
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadSettings reads the durable settings blob.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*model.Settings, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT value FROM settings WHERE key = ?", settingsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings replaces the durable settings blob.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`,
		settingsKey, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// cachedRow is one row of the session notification cache.
type cachedRow struct {
	ID      string `db:"id"`
	Payload string `db:"payload"`
}

// LoadCachedNotifications returns the notifications cached for this session.
func (s *SQLiteStore) LoadCachedNotifications(ctx context.Context) ([]model.Notification, error) {
	var rows []cachedRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, payload FROM session_notifications WHERE session_id = ? ORDER BY id",
		s.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading cached notifications: %w", err)
	}

	ns := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		var n model.Notification
		if err := json.Unmarshal([]byte(r.Payload), &n); err != nil {
			return nil, fmt.Errorf("decoding cached notification %s: %w", r.ID, err)
		}
		ns = append(ns, n)
	}
	return ns, nil
}

// SaveCachedNotifications replaces the session cache with ns.
func (s *SQLiteStore) SaveCachedNotifications(ctx context.Context, ns []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM session_notifications WHERE session_id = ?", s.sessionID,
	); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO session_notifications (session_id, id, payload)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing cache statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range ns {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encoding notification %s: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.sessionID, n.ID, string(data)); err != nil {
			return fmt.Errorf("caching notification %s: %w", n.ID, err)
		}
	}

	if err := s.touchLocked(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// touchLocked records activity for the session so PruneSessions keeps it.
func (s *SQLiteStore) touchLocked(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_state (session_id, last_fetched, updated_at)
		VALUES (?, 0, ?)
		ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		s.sessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", s.sessionID, err)
	}
	return nil
}

// LoadWatermark returns the time of the last successful fetch.
func (s *SQLiteStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	var secs int64
	err := s.db.GetContext(ctx, &secs,
		"SELECT last_fetched FROM session_state WHERE session_id = ?", s.sessionID,
	)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && secs == 0) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("loading watermark: %w", err)
	}
	return time.Unix(secs, 0), nil
}

// SaveWatermark records the time of the last successful fetch.
func (s *SQLiteStore) SaveWatermark(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_state (session_id, last_fetched, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_fetched = excluded.last_fetched,
			updated_at = excluded.updated_at`,
		s.sessionID, at.Unix(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving watermark: %w", err)
	}
	return nil
}

// ClearCache drops this session's cached notifications and watermark.
func (s *SQLiteStore) ClearCache(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM session_notifications WHERE session_id = ?", s.sessionID,
	); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM session_state WHERE session_id = ?", s.sessionID,
	); err != nil {
		return fmt.Errorf("clearing watermark: %w", err)
	}

	return tx.Commit()
}

// ClearAll drops the session cache and the durable settings.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if err := s.ClearCache(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", settingsKey); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	return nil
}

// PruneSessions removes cache rows of sessions idle since before cutoff,
// other than the current one. It returns the number of sessions removed.
func (s *SQLiteStore) PruneSessions(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []string
	err := s.db.SelectContext(ctx, &stale, `
		SELECT session_id FROM session_state
		WHERE session_id != ? AND (updated_at IS NULL OR updated_at < ?)`,
		s.sessionID, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("listing stale sessions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM session_notifications WHERE session_id IN (?)", stale,
	)
	if err != nil {
		return 0, fmt.Errorf("building prune query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("pruning cached notifications: %w", err)
	}

	query, args, err = sqlx.In("DELETE FROM session_state WHERE session_id IN (?)", stale)
	if err != nil {
		return 0, fmt.Errorf("building prune query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("pruning session state: %w", err)
	}

	return len(stale), nil
}

var _ Store = (*SQLiteStore)(nil)
