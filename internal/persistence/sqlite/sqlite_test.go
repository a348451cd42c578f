package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitsync/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "fitsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.False(t, db.ResetOnOpen())
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.False(t, db.ResetOnOpen())
	require.NoError(t, db.Close())
}

func TestOpenUnwritablePathFailsLoudly(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "nested", "fitsync.db"))
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestOpenAppliesWALMode(t *testing.T) {
	db := openTestDB(t)

	var mode string
	require.NoError(t, db.SQL().QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestOpenSetsSchemaVersion(t *testing.T) {
	db := openTestDB(t)

	var version int
	require.NoError(t, db.SQL().QueryRow("PRAGMA user_version").Scan(&version))
	require.Equal(t, currentSchemaVersion, version)
}

func TestMigrationAddsRetryColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.db")

	// Build a v0 database: queue table without retry bookkeeping.
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`DROP TABLE mutation_queue`)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`
		CREATE TABLE mutation_queue (
			entry_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT NOT NULL,
			action      TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			payload     TEXT NOT NULL,
			enqueued_at TIMESTAMP NOT NULL
		)`)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.False(t, db.ResetOnOpen())

	for _, column := range []string{"attempts", "next_attempt_at", "quarantined_at", "last_error"} {
		exists, err := columnExists(db.SQL(), "mutation_queue", column)
		require.NoError(t, err)
		require.True(t, exists, "column %s should exist after migration", column)
	}
}

func TestSchemaFailureFallsBackToReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.db")

	db, err := Open(path)
	require.NoError(t, err)
	store := NewLocalStore(db)
	require.NoError(t, store.PutExercise(context.Background(), domain.Exercise{
		ID: "ex-1", Name: "Squat", MuscleGroup: "legs", UpdatedAt: time.Now().UTC(),
	}))

	// Rebuild workouts without its indexed column. The idempotent CREATE
	// TABLE no-ops but CREATE INDEX on user_id fails, which is the shape of
	// a schema upgrade gone wrong.
	_, err = db.SQL().Exec(`DROP TABLE workouts`)
	require.NoError(t, err)
	_, err = db.SQL().Exec(`CREATE TABLE workouts (workout_id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.True(t, db.ResetOnOpen())

	// The recovered store is empty but usable.
	store = NewLocalStore(db)
	exercises, err := store.Exercises(context.Background())
	require.NoError(t, err)
	require.Empty(t, exercises)

	queue := NewMutationQueue(db, 5, time.Minute)
	_, err = queue.Enqueue(context.Background(), domain.EntityExercise, domain.ActionCreate, "ex-2", []byte(`{}`))
	require.NoError(t, err)
}
