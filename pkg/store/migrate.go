package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

// Migrate ensures the SQLite schema exists and is upgraded to SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			profile_link TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			followed_at TEXT NULL,
			check_due_at TEXT NULL,
			follows_back INTEGER NULL,
			unfollowed_at TEXT NULL,
			follow_attempts INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create accounts table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			kind TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT 'pending',
			occurred_at TEXT NOT NULL,
			detail TEXT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create actions table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_accounts_state_check_due ON accounts(state, check_due_at);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_accounts_state_check_due: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_actions_username_occurred ON actions(username, occurred_at);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_actions_username_occurred: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}

	return nil
}
