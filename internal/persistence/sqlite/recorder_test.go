package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitsync/internal/domain"
)

func TestSaveWorkoutWritesCacheAndQueueTogether(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	recorder := NewRecorder(db)
	store := NewLocalStore(db)
	queue := NewMutationQueue(db, 5, time.Minute)

	w := testWorkout("w-1", "user-1")
	require.NoError(t, recorder.SaveWorkout(ctx, w, domain.ActionCreate))

	workouts, err := store.WorkoutsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, workouts, 1)

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.EntityWorkout, entries[0].EntityType)
	require.Equal(t, domain.ActionCreate, entries[0].Action)
	require.Equal(t, "w-1", entries[0].EntityID)

	// The queued payload is the same DTO the online create call would send.
	expected, err := json.Marshal(w)
	require.NoError(t, err)
	require.JSONEq(t, string(expected), string(entries[0].Payload))
}

func TestDeleteWorkoutRecordsDeleteMutation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	recorder := NewRecorder(db)
	store := NewLocalStore(db)
	queue := NewMutationQueue(db, 5, time.Minute)

	require.NoError(t, recorder.SaveWorkout(ctx, testWorkout("w-1", "user-1"), domain.ActionCreate))
	require.NoError(t, recorder.DeleteWorkout(ctx, "w-1"))

	workouts, err := store.WorkoutsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, workouts)

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionCreate, entries[0].Action)
	require.Equal(t, domain.ActionDelete, entries[1].Action)
	require.JSONEq(t, `{"workout_id":"w-1"}`, string(entries[1].Payload))
}

func TestEnqueueFailureRollsBackCacheWrite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	recorder := NewRecorder(db)
	store := NewLocalStore(db)

	// Force the enqueue half of the dual write to fail.
	_, err := db.SQL().Exec(`DROP TABLE mutation_queue`)
	require.NoError(t, err)

	err = recorder.SaveWorkout(ctx, testWorkout("w-1", "user-1"), domain.ActionCreate)
	require.ErrorIs(t, err, ErrQueueWrite)

	// The optimistic cache write must have rolled back with it.
	workouts, err := store.WorkoutsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, workouts)
}

func TestSaveRoutineRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	recorder := NewRecorder(db)
	store := NewLocalStore(db)
	queue := NewMutationQueue(db, 5, time.Minute)

	rt := domain.Routine{
		ID: "r-1", UserID: "user-1", Name: "Leg Day", Active: true,
		ExerciseIDs: []string{"ex-1"}, UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, recorder.SaveRoutine(ctx, rt, domain.ActionCreate))

	rt.Name = "Leg Day v2"
	rt.Active = false
	require.NoError(t, recorder.SaveRoutine(ctx, rt, domain.ActionUpdate))

	routines, err := store.RoutinesByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, routines, 1)
	require.Equal(t, "Leg Day v2", routines[0].Name)
	require.False(t, routines[0].Active)

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionCreate, entries[0].Action)
	require.Equal(t, domain.ActionUpdate, entries[1].Action)
}

func TestSaveExerciseRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	recorder := NewRecorder(db)
	queue := NewMutationQueue(db, 5, time.Minute)

	ex := domain.Exercise{
		ID: "ex-1", Name: "Bench Press", MuscleGroup: "chest",
		Equipment: "barbell", UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, recorder.SaveExercise(ctx, ex, domain.ActionCreate))
	require.NoError(t, recorder.DeleteExercise(ctx, "ex-1"))

	entries, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.EntityExercise, entries[0].EntityType)
	require.JSONEq(t, `{"exercise_id":"ex-1"}`, string(entries[1].Payload))
}
