package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrValidation indicates a write request failed input validation.
var ErrValidation = errors.New("validation failed")

// MutationRecorder applies an optimistic local write and records the matching
// queue entry as a single transaction. A failure leaves neither applied, so
// the local cache never silently diverges from what will reach the server.
type MutationRecorder interface {
	SaveWorkout(ctx context.Context, w Workout, act Action) error
	DeleteWorkout(ctx context.Context, workoutID string) error
	SaveRoutine(ctx context.Context, rt Routine, act Action) error
	DeleteRoutine(ctx context.Context, routineID string) error
	SaveExercise(ctx context.Context, ex Exercise, act Action) error
	DeleteExercise(ctx context.Context, exerciseID string) error
}

// LocalReader exposes the cached entity views the UI layer renders from.
type LocalReader interface {
	WorkoutsByUser(ctx context.Context, userID string) ([]Workout, error)
	RoutinesByUser(ctx context.Context, userID string) ([]Routine, error)
	ActiveRoutinesByUser(ctx context.Context, userID string) ([]Routine, error)
	Exercises(ctx context.Context) ([]Exercise, error)
}

// Service orchestrates offline-first entity workflows: every write lands in
// the local cache immediately and queues a mutation for later replay. The
// caller never blocks on the network.
type Service struct {
	recorder MutationRecorder
	reader   LocalReader
}

// NewService constructs a Service.
func NewService(recorder MutationRecorder, reader LocalReader) *Service {
	return &Service{recorder: recorder, reader: reader}
}

// CreateWorkoutInput captures the payload from the API layer.
type CreateWorkoutInput struct {
	UserID      string
	WorkoutType string
	StartedAt   time.Time
	DurationMin int
	Notes       string
}

// CreateWorkout records a new workout locally and queues its create mutation.
func (s *Service) CreateWorkout(ctx context.Context, input CreateWorkoutInput) (*Workout, error) {
	if input.UserID == "" || input.WorkoutType == "" {
		return nil, ErrValidation
	}
	w := Workout{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		WorkoutType: input.WorkoutType,
		StartedAt:   input.StartedAt.UTC(),
		DurationMin: input.DurationMin,
		Notes:       input.Notes,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.recorder.SaveWorkout(ctx, w, ActionCreate); err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWorkout upserts an existing workout and queues its update mutation.
func (s *Service) UpdateWorkout(ctx context.Context, w Workout) error {
	if w.ID == "" || w.UserID == "" {
		return ErrValidation
	}
	w.UpdatedAt = time.Now().UTC()
	return s.recorder.SaveWorkout(ctx, w, ActionUpdate)
}

// DeleteWorkout removes a workout locally and queues its delete mutation.
func (s *Service) DeleteWorkout(ctx context.Context, workoutID string) error {
	if workoutID == "" {
		return ErrValidation
	}
	return s.recorder.DeleteWorkout(ctx, workoutID)
}

// CreateRoutineInput captures the payload from the API layer.
type CreateRoutineInput struct {
	UserID      string
	Name        string
	Active      bool
	ExerciseIDs []string
}

// CreateRoutine records a new routine locally and queues its create mutation.
func (s *Service) CreateRoutine(ctx context.Context, input CreateRoutineInput) (*Routine, error) {
	if input.UserID == "" || input.Name == "" {
		return nil, ErrValidation
	}
	rt := Routine{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Name:        input.Name,
		Active:      input.Active,
		ExerciseIDs: input.ExerciseIDs,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.recorder.SaveRoutine(ctx, rt, ActionCreate); err != nil {
		return nil, err
	}
	return &rt, nil
}

// UpdateRoutine upserts a routine and queues its update mutation. Renames and
// active-flag flips both go through here so they replay in the order made.
func (s *Service) UpdateRoutine(ctx context.Context, rt Routine) error {
	if rt.ID == "" || rt.UserID == "" {
		return ErrValidation
	}
	rt.UpdatedAt = time.Now().UTC()
	return s.recorder.SaveRoutine(ctx, rt, ActionUpdate)
}

// DeleteRoutine removes a routine locally and queues its delete mutation.
func (s *Service) DeleteRoutine(ctx context.Context, routineID string) error {
	if routineID == "" {
		return ErrValidation
	}
	return s.recorder.DeleteRoutine(ctx, routineID)
}

// CreateExerciseInput captures the payload from the API layer.
type CreateExerciseInput struct {
	Name         string
	MuscleGroup  string
	Equipment    string
	Instructions string
}

// CreateExercise records a new catalog exercise and queues its create mutation.
func (s *Service) CreateExercise(ctx context.Context, input CreateExerciseInput) (*Exercise, error) {
	if input.Name == "" || input.MuscleGroup == "" {
		return nil, ErrValidation
	}
	ex := Exercise{
		ID:           uuid.NewString(),
		Name:         input.Name,
		MuscleGroup:  input.MuscleGroup,
		Equipment:    input.Equipment,
		Instructions: input.Instructions,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.recorder.SaveExercise(ctx, ex, ActionCreate); err != nil {
		return nil, err
	}
	return &ex, nil
}

// UpdateExercise upserts a catalog exercise and queues its update mutation.
func (s *Service) UpdateExercise(ctx context.Context, ex Exercise) error {
	if ex.ID == "" {
		return ErrValidation
	}
	ex.UpdatedAt = time.Now().UTC()
	return s.recorder.SaveExercise(ctx, ex, ActionUpdate)
}

// DeleteExercise removes a catalog exercise and queues its delete mutation.
func (s *Service) DeleteExercise(ctx context.Context, exerciseID string) error {
	if exerciseID == "" {
		return ErrValidation
	}
	return s.recorder.DeleteExercise(ctx, exerciseID)
}

// WorkoutsByUser lists the locally cached workouts for a user. Ordering is the
// caller's concern.
func (s *Service) WorkoutsByUser(ctx context.Context, userID string) ([]Workout, error) {
	return s.reader.WorkoutsByUser(ctx, userID)
}

// RoutinesByUser lists the locally cached routines for a user, optionally
// restricted to active ones.
func (s *Service) RoutinesByUser(ctx context.Context, userID string, activeOnly bool) ([]Routine, error) {
	if activeOnly {
		return s.reader.ActiveRoutinesByUser(ctx, userID)
	}
	return s.reader.RoutinesByUser(ctx, userID)
}

// Exercises lists the locally cached shared exercise catalog.
func (s *Service) Exercises(ctx context.Context) ([]Exercise, error) {
	return s.reader.Exercises(ctx)
}
