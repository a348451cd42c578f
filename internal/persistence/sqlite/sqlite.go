// Package sqlite provides the durable on-device substrate for the entity
// cache and the mutation queue. Both live in one SQLite database so a local
// write and its queue entry can share a transaction.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added attempts/next_attempt_at/quarantined_at/last_error retry columns
//     on mutation_queue
const currentSchemaVersion = 1

var (
	// ErrStorageUnavailable means the local database could not be opened at
	// all. Callers should degrade to remote-only operation rather than crash.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrStorageWrite means a cache write or delete failed at the I/O level.
	// Propagated synchronously so optimistic UI state can be reverted.
	ErrStorageWrite = errors.New("local storage write failed")

	// ErrQueueWrite means a mutation could not be recorded. Distinct from
	// ErrStorageWrite: it represents a change that would never reach the
	// server.
	ErrQueueWrite = errors.New("mutation queue write failed")

	// ErrQueueRead means the pending mutations could not be read back.
	ErrQueueRead = errors.New("mutation queue read failed")
)

// DB wraps the shared SQLite handle.
// Uses WAL mode so UI reads stay usable while a sync run is writing.
type DB struct {
	db *sql.DB

	// resetOnOpen is set when a failed schema migration forced a full local
	// reset. Unsynced local data was lost; the caller must warn the user.
	resetOnOpen bool
}

// Open creates or opens the device database at the given path. Idempotent:
// safe to call on every process start.
//
// If a schema migration fails the database is wiped and rebuilt from the
// current schema instead of crash-looping; ResetOnOpen reports that this
// happened so the caller can surface the data loss.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent UI writes and sync-run removals.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	d := &DB{db: db}
	if err := applySchema(db); err != nil {
		log.Printf("[sqlite] schema upgrade failed, resetting local data: %v", err)
		if resetErr := resetSchema(db); resetErr != nil {
			db.Close()
			return nil, fmt.Errorf("%w: schema reset failed: %v", ErrStorageUnavailable, resetErr)
		}
		d.resetOnOpen = true
	}

	return d, nil
}

// ResetOnOpen reports whether Open had to discard local data to recover from
// a failed schema migration.
func (d *DB) ResetOnOpen() bool {
	return d.resetOnOpen
}

// Close closes the database handle.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQL exposes the underlying handle. Prefer LocalStore/MutationQueue methods.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// InTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on PRAGMA user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the retry bookkeeping columns to mutation_queue for
// databases created before attempt counting existed. Fresh databases get the
// columns from schema.sql, so each ALTER is guarded by a column check.
func migrateToV1(db *sql.DB) error {
	columns := map[string]string{
		"attempts":        "ALTER TABLE mutation_queue ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0",
		"next_attempt_at": "ALTER TABLE mutation_queue ADD COLUMN next_attempt_at TIMESTAMP",
		"quarantined_at":  "ALTER TABLE mutation_queue ADD COLUMN quarantined_at TIMESTAMP",
		"last_error":      "ALTER TABLE mutation_queue ADD COLUMN last_error TEXT NOT NULL DEFAULT ''",
	}
	for column, stmt := range columns {
		exists, err := columnExists(db, "mutation_queue", column)
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
		if exists {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// resetSchema drops every table and rebuilds from the current schema. Used
// only as the migration-failure fallback; all local data is lost.
func resetSchema(db *sql.DB) error {
	tables := []string{"mutation_queue", "workouts", "routines", "exercises"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("reapply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
