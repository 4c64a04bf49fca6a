// Package storage manages the SQL store shared by all services: connection
// setup, schema migrations and test helpers.
//
// PostgreSQL (lib/pq) is the production driver; an in-memory SQLite database
// (mattn/go-sqlite3) backs tests and single-node deployments. All SQL in this
// repository sticks to the dialect subset both engines accept: $N
// placeholders, partial unique indexes, RETURNING, and timestamps passed as
// parameters rather than NOW().
//
// # Usage
//
//	db, err := storage.Open(storage.Config{Driver: "postgres", DSN: url})
//	if err != nil { ... }
//	if err := storage.RunMigrations(ctx, db); err != nil { ... }
package storage
