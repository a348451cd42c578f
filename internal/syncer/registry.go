// Package syncer replays the mutation queue against the backend once
// connectivity is available.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/fitsync/internal/domain"
)

// RemoteRepository is the per-entity backend collaborator a queued mutation
// is replayed against. Implementations own their own timeouts; a returned
// error means "this item did not succeed this run", nothing more.
type RemoteRepository interface {
	Create(ctx context.Context, payload json.RawMessage) error
	Update(ctx context.Context, id string, payload json.RawMessage) error
	Delete(ctx context.Context, id string) error
}

// Handler replays a single queue entry.
type Handler func(ctx context.Context, entry domain.MutationEntry) error

type handlerKey struct {
	entityType domain.EntityType
	action     domain.Action
}

// Registry resolves a queue entry to its replay handler through the full
// (entity type, action) matrix. Construction fails unless every combination
// is bound, so adding an entity type is caught at wiring time instead of
// surfacing as an unmatched string during a sync run.
type Registry struct {
	handlers map[handlerKey]Handler
}

// NewRegistry binds one repository per entity type and expands it into the
// nine-entry handler table.
func NewRegistry(workouts, routines, exercises RemoteRepository) (*Registry, error) {
	repos := map[domain.EntityType]RemoteRepository{
		domain.EntityWorkout:  workouts,
		domain.EntityRoutine:  routines,
		domain.EntityExercise: exercises,
	}

	handlers := make(map[handlerKey]Handler)
	for _, entityType := range domain.EntityTypes {
		repo := repos[entityType]
		if repo == nil {
			return nil, fmt.Errorf("registry: no repository for entity type %q", entityType)
		}
		for _, action := range domain.Actions {
			handlers[handlerKey{entityType, action}] = bind(repo, action)
		}
	}

	// Exhaustiveness check against the declared matrix.
	for _, entityType := range domain.EntityTypes {
		for _, action := range domain.Actions {
			if handlers[handlerKey{entityType, action}] == nil {
				return nil, fmt.Errorf("registry: unbound handler for %s/%s", entityType, action)
			}
		}
	}

	return &Registry{handlers: handlers}, nil
}

func bind(repo RemoteRepository, action domain.Action) Handler {
	switch action {
	case domain.ActionCreate:
		return func(ctx context.Context, entry domain.MutationEntry) error {
			return repo.Create(ctx, entry.Payload)
		}
	case domain.ActionUpdate:
		return func(ctx context.Context, entry domain.MutationEntry) error {
			return repo.Update(ctx, entry.EntityID, entry.Payload)
		}
	case domain.ActionDelete:
		return func(ctx context.Context, entry domain.MutationEntry) error {
			return repo.Delete(ctx, entry.EntityID)
		}
	}
	return nil
}

// Dispatch replays one entry through its bound handler.
func (r *Registry) Dispatch(ctx context.Context, entry domain.MutationEntry) error {
	handler, ok := r.handlers[handlerKey{entry.EntityType, entry.Action}]
	if !ok {
		return fmt.Errorf("registry: no handler for %s/%s", entry.EntityType, entry.Action)
	}
	return handler(ctx, entry)
}
