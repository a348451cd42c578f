package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"example.com/fitsync/internal/domain"
)

// Recorder performs the dual write behind every offline mutation: the
// optimistic cache write and the queue append commit or roll back together,
// so a failed enqueue can never leave the cache claiming a change that will
// never reach the server.
type Recorder struct {
	db *DB
}

// NewRecorder constructs a Recorder over the shared database.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// SaveWorkout upserts the workout locally and queues its mutation.
func (r *Recorder) SaveWorkout(ctx context.Context, w domain.Workout, act domain.Action) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("%w: encode workout: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := putWorkout(ctx, tx, w); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityWorkout, act, w.ID, payload)
		return err
	})
}

// DeleteWorkout removes the workout locally and queues its delete mutation.
func (r *Recorder) DeleteWorkout(ctx context.Context, workoutID string) error {
	payload, err := json.Marshal(struct {
		WorkoutID string `json:"workout_id"`
	}{workoutID})
	if err != nil {
		return fmt.Errorf("%w: encode delete: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := deleteWorkout(ctx, tx, workoutID); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityWorkout, domain.ActionDelete, workoutID, payload)
		return err
	})
}

// SaveRoutine upserts the routine locally and queues its mutation.
func (r *Recorder) SaveRoutine(ctx context.Context, rt domain.Routine, act domain.Action) error {
	payload, err := json.Marshal(rt)
	if err != nil {
		return fmt.Errorf("%w: encode routine: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := putRoutine(ctx, tx, rt); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityRoutine, act, rt.ID, payload)
		return err
	})
}

// DeleteRoutine removes the routine locally and queues its delete mutation.
func (r *Recorder) DeleteRoutine(ctx context.Context, routineID string) error {
	payload, err := json.Marshal(struct {
		RoutineID string `json:"routine_id"`
	}{routineID})
	if err != nil {
		return fmt.Errorf("%w: encode delete: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := deleteRoutine(ctx, tx, routineID); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityRoutine, domain.ActionDelete, routineID, payload)
		return err
	})
}

// SaveExercise upserts the catalog exercise locally and queues its mutation.
func (r *Recorder) SaveExercise(ctx context.Context, ex domain.Exercise, act domain.Action) error {
	payload, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("%w: encode exercise: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := putExercise(ctx, tx, ex); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityExercise, act, ex.ID, payload)
		return err
	})
}

// DeleteExercise removes the catalog exercise locally and queues its delete
// mutation.
func (r *Recorder) DeleteExercise(ctx context.Context, exerciseID string) error {
	payload, err := json.Marshal(struct {
		ExerciseID string `json:"exercise_id"`
	}{exerciseID})
	if err != nil {
		return fmt.Errorf("%w: encode delete: %v", ErrQueueWrite, err)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := deleteExercise(ctx, tx, exerciseID); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, domain.EntityExercise, domain.ActionDelete, exerciseID, payload)
		return err
	})
}
