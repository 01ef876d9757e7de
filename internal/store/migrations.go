package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_notifications (
	session_id TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (session_id, id)
);

CREATE TABLE IF NOT EXISTS session_state (
	session_id   TEXT PRIMARY KEY,
	last_fetched INTEGER NOT NULL DEFAULT 0
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE session_state ADD COLUMN updated_at DATETIME;

CREATE INDEX IF NOT EXISTS idx_session_notifications_session
	ON session_notifications(session_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
