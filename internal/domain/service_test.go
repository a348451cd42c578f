package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordedSave struct {
	kind   string
	id     string
	action Action
}

type stubRecorder struct {
	saves []recordedSave
	err   error
}

func (r *stubRecorder) SaveWorkout(ctx context.Context, w Workout, act Action) error {
	r.saves = append(r.saves, recordedSave{kind: "workout", id: w.ID, action: act})
	return r.err
}

func (r *stubRecorder) DeleteWorkout(ctx context.Context, workoutID string) error {
	r.saves = append(r.saves, recordedSave{kind: "workout", id: workoutID, action: ActionDelete})
	return r.err
}

func (r *stubRecorder) SaveRoutine(ctx context.Context, rt Routine, act Action) error {
	r.saves = append(r.saves, recordedSave{kind: "routine", id: rt.ID, action: act})
	return r.err
}

func (r *stubRecorder) DeleteRoutine(ctx context.Context, routineID string) error {
	r.saves = append(r.saves, recordedSave{kind: "routine", id: routineID, action: ActionDelete})
	return r.err
}

func (r *stubRecorder) SaveExercise(ctx context.Context, ex Exercise, act Action) error {
	r.saves = append(r.saves, recordedSave{kind: "exercise", id: ex.ID, action: act})
	return r.err
}

func (r *stubRecorder) DeleteExercise(ctx context.Context, exerciseID string) error {
	r.saves = append(r.saves, recordedSave{kind: "exercise", id: exerciseID, action: ActionDelete})
	return r.err
}

type stubReader struct {
	workouts []Workout
	routines []Routine
	active   []Routine
}

func (r *stubReader) WorkoutsByUser(ctx context.Context, userID string) ([]Workout, error) {
	return r.workouts, nil
}

func (r *stubReader) RoutinesByUser(ctx context.Context, userID string) ([]Routine, error) {
	return r.routines, nil
}

func (r *stubReader) ActiveRoutinesByUser(ctx context.Context, userID string) ([]Routine, error) {
	return r.active, nil
}

func (r *stubReader) Exercises(ctx context.Context) ([]Exercise, error) {
	return nil, nil
}

func TestCreateWorkoutAssignsIDAndQueuesCreate(t *testing.T) {
	recorder := &stubRecorder{}
	svc := NewService(recorder, &stubReader{})

	w, err := svc.CreateWorkout(context.Background(), CreateWorkoutInput{
		UserID:      "user-1",
		WorkoutType: "strength",
		StartedAt:   time.Date(2026, time.August, 30, 7, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		DurationMin: 45,
	})
	require.NoError(t, err)

	require.NoError(t, uuid.Validate(w.ID))
	require.Equal(t, time.UTC, w.StartedAt.Location())
	require.False(t, w.UpdatedAt.IsZero())

	require.Len(t, recorder.saves, 1)
	require.Equal(t, recordedSave{kind: "workout", id: w.ID, action: ActionCreate}, recorder.saves[0])
}

func TestCreateWorkoutValidatesInput(t *testing.T) {
	svc := NewService(&stubRecorder{}, &stubReader{})

	_, err := svc.CreateWorkout(context.Background(), CreateWorkoutInput{WorkoutType: "strength"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateWorkout(context.Background(), CreateWorkoutInput{UserID: "user-1"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateWorkoutSurfacesRecorderFailure(t *testing.T) {
	recorder := &stubRecorder{err: errors.New("disk full")}
	svc := NewService(recorder, &stubReader{})

	_, err := svc.CreateWorkout(context.Background(), CreateWorkoutInput{UserID: "u", WorkoutType: "run"})
	require.EqualError(t, err, "disk full")
}

func TestUpdateWorkoutQueuesUpdate(t *testing.T) {
	recorder := &stubRecorder{}
	svc := NewService(recorder, &stubReader{})

	require.NoError(t, svc.UpdateWorkout(context.Background(), Workout{ID: "w-1", UserID: "user-1", WorkoutType: "run"}))
	require.Equal(t, recordedSave{kind: "workout", id: "w-1", action: ActionUpdate}, recorder.saves[0])

	require.ErrorIs(t, svc.UpdateWorkout(context.Background(), Workout{UserID: "user-1"}), ErrValidation)
}

func TestDeleteWorkoutQueuesDelete(t *testing.T) {
	recorder := &stubRecorder{}
	svc := NewService(recorder, &stubReader{})

	require.NoError(t, svc.DeleteWorkout(context.Background(), "w-1"))
	require.Equal(t, recordedSave{kind: "workout", id: "w-1", action: ActionDelete}, recorder.saves[0])

	require.ErrorIs(t, svc.DeleteWorkout(context.Background(), ""), ErrValidation)
}

func TestRoutineLifecycle(t *testing.T) {
	recorder := &stubRecorder{}
	svc := NewService(recorder, &stubReader{})

	rt, err := svc.CreateRoutine(context.Background(), CreateRoutineInput{
		UserID:      "user-1",
		Name:        "push day",
		Active:      true,
		ExerciseIDs: []string{"e-1", "e-2"},
	})
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(rt.ID))

	rt.Name = "push day v2"
	require.NoError(t, svc.UpdateRoutine(context.Background(), *rt))
	require.NoError(t, svc.DeleteRoutine(context.Background(), rt.ID))

	require.Equal(t, []recordedSave{
		{kind: "routine", id: rt.ID, action: ActionCreate},
		{kind: "routine", id: rt.ID, action: ActionUpdate},
		{kind: "routine", id: rt.ID, action: ActionDelete},
	}, recorder.saves)

	_, err = svc.CreateRoutine(context.Background(), CreateRoutineInput{UserID: "user-1"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestExerciseLifecycle(t *testing.T) {
	recorder := &stubRecorder{}
	svc := NewService(recorder, &stubReader{})

	ex, err := svc.CreateExercise(context.Background(), CreateExerciseInput{
		Name:        "deadlift",
		MuscleGroup: "back",
		Equipment:   "barbell",
	})
	require.NoError(t, err)
	require.NoError(t, uuid.Validate(ex.ID))

	require.NoError(t, svc.UpdateExercise(context.Background(), *ex))
	require.NoError(t, svc.DeleteExercise(context.Background(), ex.ID))

	_, err = svc.CreateExercise(context.Background(), CreateExerciseInput{Name: "deadlift"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRoutinesByUserHonorsActiveFilter(t *testing.T) {
	reader := &stubReader{
		routines: []Routine{{ID: "r-1"}, {ID: "r-2"}},
		active:   []Routine{{ID: "r-1"}},
	}
	svc := NewService(&stubRecorder{}, reader)

	all, err := svc.RoutinesByUser(context.Background(), "user-1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.RoutinesByUser(context.Background(), "user-1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "r-1", active[0].ID)
}
