// Package sqlite provides embedded persistence for profiles, credit
// accounting, and generation logs. It uses the pure-Go modernc.org/sqlite
// driver so the binary stays CGO-free.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and exposes typed operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database under dir and applies migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "nutrigen.db")
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent gate calls.
	conn.SetMaxOpenConns(1)

	db := &DB{db: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies the schema. Each string is a single SQL statement
// (SQLite executes one at a time).
func (db *DB) migrate() error {
	stmts := []string{
		// User profiles. The balance is the server-owned credit counter;
		// the CHECK keeps it from ever going negative.
		`CREATE TABLE IF NOT EXISTS profiles (
			id                       TEXT PRIMARY KEY,
			display_name             TEXT DEFAULT '',
			role                     TEXT NOT NULL DEFAULT 'trainee',
			language                 TEXT NOT NULL DEFAULT 'en',
			ai_generations_remaining INTEGER NOT NULL DEFAULT 0
				CHECK (ai_generations_remaining >= 0),
			created_at               TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at               TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Generation logs — one row per attempt, created pending, exactly
		// one terminal update. Never deleted from this side.
		`CREATE TABLE IF NOT EXISTS generation_logs (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			generation_type TEXT NOT NULL,
			prompt_data     TEXT,
			status          TEXT NOT NULL DEFAULT 'pending',
			response_data   TEXT,
			error_message   TEXT,
			credits_used    INTEGER NOT NULL DEFAULT 1,
			refunded        INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			completed_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_genlog_user ON generation_logs(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_genlog_status ON generation_logs(status)`,

		// Credit ledger — every balance movement, with running balance.
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   TEXT NOT NULL,
			tx_type     TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			log_id      TEXT,
			description TEXT DEFAULT '',
			balance     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON credit_ledger(user_id, id)`,
	}

	for _, s := range stmts {
		if _, err := db.db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
