package storage

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "create_records_table", createRecordsTable},
	{2, "create_records_indices", createRecordsIndices},
	{3, "create_page_cache_table", createPageCacheTable},
}

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("could not create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

const createRecordsTable = `
CREATE TABLE records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	format TEXT NOT NULL,
	strategy TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	content_length INTEGER NOT NULL DEFAULT 0,
	content_tokens INTEGER NOT NULL DEFAULT 0,
	instruction_tokens INTEGER NOT NULL DEFAULT 0,
	answer_tokens INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	model TEXT NOT NULL,
	limit_exceeded BOOLEAN NOT NULL DEFAULT 0,
	answer TEXT NOT NULL,
	raw_content TEXT NOT NULL,
	adapted_content TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

const createRecordsIndices = `
CREATE INDEX idx_records_run ON records(run_id);
CREATE INDEX idx_records_model ON records(model);
CREATE INDEX idx_records_created ON records(created_at);
`

const createPageCacheTable = `
CREATE TABLE page_cache (
	key TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	body BLOB NOT NULL,
	truncated BOOLEAN NOT NULL DEFAULT 0,
	size_bytes INTEGER NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	last_accessed_at INTEGER NOT NULL
);
CREATE INDEX idx_page_cache_expires ON page_cache(expires_at);
`
