package repository

import (
	"database/sql"
	"strings"
)

// migrationsSQL holds the full schema. Statements are split on ";" and run in
// order, so none of them may contain an embedded semicolon.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	score INTEGER NOT NULL DEFAULT 0 CHECK (score >= 0),
	first_vote_at INTEGER,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_score ON entries(score DESC);

CREATE TABLE IF NOT EXISTS vote_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE NOT NULL,
	entry_name TEXT NOT NULL REFERENCES entries(name),
	vote_type TEXT NOT NULL,
	weight INTEGER NOT NULL,
	voter TEXT,
	processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vote_records_entry ON vote_records(entry_name, processed_at);

CREATE TABLE IF NOT EXISTS unresolved_labels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_label TEXT NOT NULL,
	attempted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync TIMESTAMP,
	sync_count INTEGER NOT NULL DEFAULT 0,
	pending_changes INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO sync_state (id) VALUES (1)
`

// initSchema runs migrations on the given DB connection using the embedded SQL.
func initSchema(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
