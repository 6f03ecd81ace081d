// Package store provides SQLite-backed persistence for agents,
// memberships, and messages.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	background_prompt   TEXT NOT NULL DEFAULT '',
	kind                TEXT NOT NULL DEFAULT 'persona',
	model               TEXT NOT NULL DEFAULT '',
	temperature         REAL NOT NULL DEFAULT 1.0,
	status              TEXT NOT NULL DEFAULT 'idle',
	heartbeat_interval_ms INTEGER NOT NULL DEFAULT 3000,
	token_budget        INTEGER NOT NULL DEFAULT 8000,
	knowledge_pct       INTEGER NOT NULL DEFAULT 30,
	recent_actions_pct  INTEGER NOT NULL DEFAULT 10,
	rooms_pct           INTEGER NOT NULL DEFAULT 60,
	room_wpm            INTEGER NOT NULL DEFAULT 60,
	can_create_agents   BOOLEAN NOT NULL DEFAULT 0,
	over_budget         BOOLEAN NOT NULL DEFAULT 0,
	sleep_until         DATETIME,
	self_concept_json   TEXT NOT NULL DEFAULT '{}',
	room_billboard      TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS memberships (
	agent_id                TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	room_id                 TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	joined_at               DATETIME NOT NULL DEFAULT (datetime('now')),
	last_message_id         INTEGER NOT NULL DEFAULT 0,
	last_response_time      DATETIME,
	last_response_word_count INTEGER NOT NULL DEFAULT 0,
	attention_pct           INTEGER NOT NULL DEFAULT 0,
	is_dynamic              BOOLEAN NOT NULL DEFAULT 0,
	is_self_room            BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (agent_id, room_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id       TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	sender_id     TEXT NOT NULL,
	sender_name   TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL,
	type          TEXT NOT NULL DEFAULT 'text',
	reply_to_id   INTEGER,
	sequence      INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reactions (
	message_id  INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	agent_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (message_id, agent_id, kind)
);

CREATE TABLE IF NOT EXISTS recent_actions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id    TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	action      TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_memberships_room ON memberships(room_id);
CREATE INDEX IF NOT EXISTS idx_memberships_agent ON memberships(agent_id);
CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages(room_id, sequence);
CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id);
CREATE INDEX IF NOT EXISTS idx_recent_actions_agent ON recent_actions(agent_id, id);
`

// Open creates or opens a SQLite database at the given path and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}
