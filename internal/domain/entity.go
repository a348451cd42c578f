// Package domain defines the entity model and offline write workflows.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies which kind of record a mutation targets.
type EntityType string

const (
	EntityWorkout  EntityType = "workout"
	EntityRoutine  EntityType = "routine"
	EntityExercise EntityType = "exercise"
)

// Action identifies the remote operation a mutation represents.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// EntityTypes lists every entity kind. Used to verify registry exhaustiveness.
var EntityTypes = []EntityType{EntityWorkout, EntityRoutine, EntityExercise}

// Actions lists every mutation action.
var Actions = []Action{ActionCreate, ActionUpdate, ActionDelete}

// ParseEntityType validates a stored entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityWorkout, EntityRoutine, EntityExercise:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type: %q", s)
}

// ParseAction validates a stored action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionUpdate, ActionDelete:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

// Workout is a logged training session owned by a user.
type Workout struct {
	ID          string    `json:"workout_id"`
	UserID      string    `json:"user_id"`
	WorkoutType string    `json:"workout_type"`
	StartedAt   time.Time `json:"started_at"`
	DurationMin int       `json:"duration_min"`
	Notes       string    `json:"notes,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Routine is a reusable workout template owned by a user. Only one routine
// per user is typically active, but the store does not enforce that.
type Routine struct {
	ID          string    `json:"routine_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	ExerciseIDs []string  `json:"exercise_ids,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Exercise is a shared catalog entry. It has no owning user.
type Exercise struct {
	ID           string    `json:"exercise_id"`
	Name         string    `json:"name"`
	MuscleGroup  string    `json:"muscle_group"`
	Equipment    string    `json:"equipment,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
