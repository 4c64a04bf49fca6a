package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and api_tokens tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					username TEXT PRIMARY KEY,
					created_at TIMESTAMP NOT NULL
				);

				CREATE TABLE IF NOT EXISTS api_tokens (
					token_hash TEXT PRIMARY KEY,
					token_prefix TEXT NOT NULL,
					username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
					name TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP,
					revoked_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_api_tokens_username ON api_tokens(username);
			`,
		},
		{
			Version:     2,
			Description: "Create groups, group_members and group_permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					name TEXT PRIMARY KEY,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				);

				CREATE TABLE IF NOT EXISTS group_members (
					group_name TEXT NOT NULL REFERENCES groups(name) ON DELETE CASCADE,
					username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
					is_owner BOOLEAN NOT NULL DEFAULT FALSE,
					PRIMARY KEY (group_name, username)
				);

				CREATE INDEX IF NOT EXISTS idx_group_members_username ON group_members(username);

				CREATE TABLE IF NOT EXISTS group_permissions (
					group_name TEXT NOT NULL REFERENCES groups(name) ON DELETE CASCADE,
					prefix TEXT NOT NULL,
					table_class TEXT NOT NULL,
					capability TEXT NOT NULL,
					PRIMARY KEY (group_name, prefix, table_class, capability)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create prefixes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS prefixes (
					name TEXT PRIMARY KEY,
					owner_user TEXT NOT NULL,
					owner_group TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP,
					counter BIGINT NOT NULL DEFAULT 0
				);
			`,
		},
		{
			Version:     4,
			Description: "Create objects and version_counters tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS objects (
					object_id TEXT PRIMARY KEY,
					prefix TEXT NOT NULL REFERENCES prefixes(name),
					sequence BIGINT NOT NULL,
					version BIGINT NOT NULL DEFAULT 0,
					state TEXT NOT NULL,
					schema_id TEXT NOT NULL DEFAULT '',
					contents TEXT NOT NULL,
					owner_group TEXT NOT NULL,
					last_update TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_draft
					ON objects(prefix, sequence) WHERE state = 'DRAFT';
				CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_published
					ON objects(prefix, sequence, version) WHERE state = 'PUBLISHED';

				CREATE TABLE IF NOT EXISTS version_counters (
					prefix TEXT NOT NULL,
					sequence BIGINT NOT NULL,
					last_version BIGINT NOT NULL DEFAULT 0,
					PRIMARY KEY (prefix, sequence)
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bcodb_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM bcodb_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO bcodb_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
			migration.Version, migration.Description, time.Now(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
