package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"example.com/fitsync/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx so the same statements
// serve direct calls and the dual-write transaction in Recorder.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LocalStore is the durable, indexed cache of domain entities. It holds the
// last known state of each entity, which may be ahead of the backend (local
// writes still queued) or behind it (remote changed and not re-fetched).
type LocalStore struct {
	db *DB
}

// NewLocalStore constructs a LocalStore over an opened database.
func NewLocalStore(db *DB) *LocalStore {
	return &LocalStore{db: db}
}

// PutWorkout upserts a workout by primary key. The row and its indexed
// columns are written in one statement, so there are no partial writes.
func (s *LocalStore) PutWorkout(ctx context.Context, w domain.Workout) error {
	return putWorkout(ctx, s.db.db, w)
}

func putWorkout(ctx context.Context, ex execer, w domain.Workout) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO workouts (workout_id, user_id, workout_type, started_at, duration_min, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workout_id) DO UPDATE SET
			user_id = excluded.user_id,
			workout_type = excluded.workout_type,
			started_at = excluded.started_at,
			duration_min = excluded.duration_min,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, w.ID, w.UserID, w.WorkoutType, w.StartedAt.UTC(), w.DurationMin, w.Notes, w.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: put workout: %v", ErrStorageWrite, err)
	}
	return nil
}

// WorkoutsByUser returns the cached workouts for a user, unordered. The
// caller sorts if it cares.
func (s *LocalStore) WorkoutsByUser(ctx context.Context, userID string) ([]domain.Workout, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT workout_id, user_id, workout_type, started_at, duration_min, notes, updated_at
		FROM workouts WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Workout, 0)
	for rows.Next() {
		var w domain.Workout
		if err := rows.Scan(&w.ID, &w.UserID, &w.WorkoutType, &w.StartedAt, &w.DurationMin, &w.Notes, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWorkout removes a workout by key. Deleting a missing key is not an
// error.
func (s *LocalStore) DeleteWorkout(ctx context.Context, workoutID string) error {
	return deleteWorkout(ctx, s.db.db, workoutID)
}

func deleteWorkout(ctx context.Context, ex execer, workoutID string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM workouts WHERE workout_id = ?`, workoutID); err != nil {
		return fmt.Errorf("%w: delete workout: %v", ErrStorageWrite, err)
	}
	return nil
}

// PutRoutine upserts a routine by primary key.
func (s *LocalStore) PutRoutine(ctx context.Context, rt domain.Routine) error {
	return putRoutine(ctx, s.db.db, rt)
}

func putRoutine(ctx context.Context, ex execer, rt domain.Routine) error {
	ids, err := json.Marshal(rt.ExerciseIDs)
	if err != nil {
		return fmt.Errorf("%w: encode exercise ids: %v", ErrStorageWrite, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO routines (routine_id, user_id, name, active, exercise_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(routine_id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			active = excluded.active,
			exercise_ids = excluded.exercise_ids,
			updated_at = excluded.updated_at
	`, rt.ID, rt.UserID, rt.Name, rt.Active, string(ids), rt.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: put routine: %v", ErrStorageWrite, err)
	}
	return nil
}

// RoutinesByUser returns the cached routines for a user, unordered.
func (s *LocalStore) RoutinesByUser(ctx context.Context, userID string) ([]domain.Routine, error) {
	return s.queryRoutines(ctx, `
		SELECT routine_id, user_id, name, active, exercise_ids, updated_at
		FROM routines WHERE user_id = ?
	`, userID)
}

// ActiveRoutinesByUser returns only the user's active routines, served by the
// (user_id, active) index.
func (s *LocalStore) ActiveRoutinesByUser(ctx context.Context, userID string) ([]domain.Routine, error) {
	return s.queryRoutines(ctx, `
		SELECT routine_id, user_id, name, active, exercise_ids, updated_at
		FROM routines WHERE user_id = ? AND active = 1
	`, userID)
}

func (s *LocalStore) queryRoutines(ctx context.Context, query string, args ...any) ([]domain.Routine, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Routine, 0)
	for rows.Next() {
		var (
			rt  domain.Routine
			ids string
		)
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Name, &rt.Active, &ids, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &rt.ExerciseIDs); err != nil {
			return nil, fmt.Errorf("decode exercise ids: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// DeleteRoutine removes a routine by key; idempotent.
func (s *LocalStore) DeleteRoutine(ctx context.Context, routineID string) error {
	return deleteRoutine(ctx, s.db.db, routineID)
}

func deleteRoutine(ctx context.Context, ex execer, routineID string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM routines WHERE routine_id = ?`, routineID); err != nil {
		return fmt.Errorf("%w: delete routine: %v", ErrStorageWrite, err)
	}
	return nil
}

// PutExercise upserts a shared catalog exercise by primary key.
func (s *LocalStore) PutExercise(ctx context.Context, e domain.Exercise) error {
	return putExercise(ctx, s.db.db, e)
}

func putExercise(ctx context.Context, ex execer, e domain.Exercise) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO exercises (exercise_id, name, muscle_group, equipment, instructions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(exercise_id) DO UPDATE SET
			name = excluded.name,
			muscle_group = excluded.muscle_group,
			equipment = excluded.equipment,
			instructions = excluded.instructions,
			updated_at = excluded.updated_at
	`, e.ID, e.Name, e.MuscleGroup, e.Equipment, e.Instructions, e.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: put exercise: %v", ErrStorageWrite, err)
	}
	return nil
}

// Exercises returns the cached shared catalog, unordered.
func (s *LocalStore) Exercises(ctx context.Context) ([]domain.Exercise, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT exercise_id, name, muscle_group, equipment, instructions, updated_at
		FROM exercises
	`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Exercise, 0)
	for rows.Next() {
		var e domain.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.Instructions, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExercise removes a catalog exercise by key; idempotent.
func (s *LocalStore) DeleteExercise(ctx context.Context, exerciseID string) error {
	return deleteExercise(ctx, s.db.db, exerciseID)
}

func deleteExercise(ctx context.Context, ex execer, exerciseID string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM exercises WHERE exercise_id = ?`, exerciseID); err != nil {
		return fmt.Errorf("%w: delete exercise: %v", ErrStorageWrite, err)
	}
	return nil
}

// Evict removes an entity from the cache without recording a mutation. Only
// for entities whose remote deletion was already confirmed through another
// channel (e.g. a server push); normal deletes go through the Recorder.
func (s *LocalStore) Evict(ctx context.Context, entityType domain.EntityType, entityID string) error {
	switch entityType {
	case domain.EntityWorkout:
		return deleteWorkout(ctx, s.db.db, entityID)
	case domain.EntityRoutine:
		return deleteRoutine(ctx, s.db.db, entityID)
	case domain.EntityExercise:
		return deleteExercise(ctx, s.db.db, entityID)
	}
	return fmt.Errorf("evict: unknown entity type %q", entityType)
}

// Reset clears every cached entity. Used on logout. The mutation queue is
// cleared separately.
func (s *LocalStore) Reset(ctx context.Context) error {
	for _, table := range []string{"workouts", "routines", "exercises"} {
		if _, err := s.db.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("%w: reset %s: %v", ErrStorageWrite, table, err)
		}
	}
	return nil
}
