// Package api exposes the loopback HTTP surface the UI layer talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fitsync/internal/domain"
	"example.com/fitsync/internal/persistence/sqlite"
	"example.com/fitsync/internal/syncer"
)

// SyncTrigger is the slice of the sync engine the API needs. Trigger must be
// fire-and-forget: a run claimed here outlives the HTTP request that asked
// for it.
type SyncTrigger interface {
	Trigger() bool
	State() syncer.State
}

// QueueInspector exposes the queue views and the logout clear.
type QueueInspector interface {
	List(ctx context.Context) ([]domain.MutationEntry, error)
	Quarantined(ctx context.Context) ([]domain.MutationEntry, error)
	Pending(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// LocalResetter clears the cached entities on logout.
type LocalResetter interface {
	Reset(ctx context.Context) error
}

// Handler coordinates HTTP requests with the offline write paths. When the
// local store could not be opened the handler runs degraded: writes are
// forwarded straight to the backend and cache reads return 503.
type Handler struct {
	service    *domain.Service
	sync       SyncTrigger
	queue      QueueInspector
	store      LocalResetter
	dispatcher syncer.Dispatcher
	degraded   bool
}

// NewHandler builds a Handler for normal, locally-backed operation.
func NewHandler(service *domain.Service, sync SyncTrigger, queue QueueInspector, store LocalResetter) *Handler {
	return &Handler{service: service, sync: sync, queue: queue, store: store}
}

// NewDegradedHandler builds a Handler for remote-only operation, used when
// local storage is unavailable (e.g. restrictive privacy mode). Writes go
// through the dispatcher synchronously.
func NewDegradedHandler(dispatcher syncer.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher, degraded: true}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/v1/routines", h.routines)
	mux.HandleFunc("/v1/routines/", h.routineByID)
	mux.HandleFunc("/v1/exercises", h.exercises)
	mux.HandleFunc("/v1/exercises/", h.exerciseByID)
	mux.HandleFunc("/v1/sync", h.triggerSync)
	mux.HandleFunc("/v1/sync/status", h.syncStatus)
	mux.HandleFunc("/v1/queue", h.queueEntries)
	mux.HandleFunc("/v1/reset", h.reset)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for supervision.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	if h.degraded {
		workout := req.toWorkout(uuid.NewString())
		h.dispatchDirect(r.Context(), w, domain.EntityWorkout, domain.ActionCreate, workout.ID, workout)
		return
	}

	workout, err := h.service.CreateWorkout(r.Context(), domain.CreateWorkoutInput{
		UserID:      req.UserID,
		WorkoutType: req.WorkoutType,
		StartedAt:   req.StartedAt,
		DurationMin: req.DurationMin,
		Notes:       req.Notes,
	})
	if err != nil {
		writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, workout)
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	if h.degraded {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "local cache unavailable")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}
	workouts, err := h.service.WorkoutsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid workout id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req CreateWorkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		workout := req.toWorkout(id)
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityWorkout, domain.ActionUpdate, id, workout)
			return
		}
		if err := h.service.UpdateWorkout(r.Context(), workout); err != nil {
			writeWriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, workout)
	case http.MethodDelete:
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityWorkout, domain.ActionDelete, id, nil)
			return
		}
		if err := h.service.DeleteWorkout(r.Context(), id); err != nil {
			writeWriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) routines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRoutine(w, r)
	case http.MethodGet:
		h.listRoutines(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createRoutine(w http.ResponseWriter, r *http.Request) {
	var req RoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	if h.degraded {
		routine := req.toRoutine(uuid.NewString())
		h.dispatchDirect(r.Context(), w, domain.EntityRoutine, domain.ActionCreate, routine.ID, routine)
		return
	}

	routine, err := h.service.CreateRoutine(r.Context(), domain.CreateRoutineInput{
		UserID:      req.UserID,
		Name:        req.Name,
		Active:      req.Active,
		ExerciseIDs: req.ExerciseIDs,
	})
	if err != nil {
		writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, routine)
}

func (h *Handler) listRoutines(w http.ResponseWriter, r *http.Request) {
	if h.degraded {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "local cache unavailable")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	routines, err := h.service.RoutinesByUser(r.Context(), userID, activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (h *Handler) routineByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/routines/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid routine id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req RoutineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		routine := req.toRoutine(id)
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityRoutine, domain.ActionUpdate, id, routine)
			return
		}
		if err := h.service.UpdateRoutine(r.Context(), routine); err != nil {
			writeWriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, routine)
	case http.MethodDelete:
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityRoutine, domain.ActionDelete, id, nil)
			return
		}
		if err := h.service.DeleteRoutine(r.Context(), id); err != nil {
			writeWriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) exercises(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createExercise(w, r)
	case http.MethodGet:
		if h.degraded {
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "local cache unavailable")
			return
		}
		exercises, err := h.service.Exercises(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, exercises)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	if h.degraded {
		exercise := req.toExercise(uuid.NewString())
		h.dispatchDirect(r.Context(), w, domain.EntityExercise, domain.ActionCreate, exercise.ID, exercise)
		return
	}

	exercise, err := h.service.CreateExercise(r.Context(), domain.CreateExerciseInput{
		Name:         req.Name,
		MuscleGroup:  req.MuscleGroup,
		Equipment:    req.Equipment,
		Instructions: req.Instructions,
	})
	if err != nil {
		writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exercise)
}

func (h *Handler) exerciseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/exercises/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid exercise id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req ExerciseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		exercise := req.toExercise(id)
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityExercise, domain.ActionUpdate, id, exercise)
			return
		}
		if err := h.service.UpdateExercise(r.Context(), exercise); err != nil {
			writeWriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, exercise)
	case http.MethodDelete:
		if h.degraded {
			h.dispatchDirect(r.Context(), w, domain.EntityExercise, domain.ActionDelete, id, nil)
			return
		}
		if err := h.service.DeleteExercise(r.Context(), id); err != nil {
			writeWriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.degraded {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "nothing to sync without local storage")
		return
	}

	// The run is detached from the request: an impatient or disconnected
	// client must not abort a replay already in flight.
	started := h.sync.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"started": started,
		"state":   h.sync.State(),
	})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.degraded {
		writeJSON(w, http.StatusOK, map[string]any{"state": "degraded"})
		return
	}

	pending, err := h.queue.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	quarantined, err := h.queue.Quarantined(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":       h.sync.State(),
		"pending":     pending,
		"quarantined": len(quarantined),
	})
}

func (h *Handler) queueEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.degraded {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "local cache unavailable")
		return
	}

	var (
		entries []domain.MutationEntry
		err     error
	)
	if r.URL.Query().Get("quarantined") == "true" {
		entries, err = h.queue.Quarantined(r.Context())
	} else {
		entries, err = h.queue.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]QueueEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toQueueEntryView(entry))
	}
	writeJSON(w, http.StatusOK, views)
}

// reset clears the local cache and the queue. Pending mutations are dropped,
// so this is only for logout or explicit user-driven recovery.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if h.degraded {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "local cache unavailable")
		return
	}

	if err := h.queue.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := h.store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispatchDirect forwards a write synchronously to the backend via the same
// handler registry a sync run uses. Only reached in degraded mode.
func (h *Handler) dispatchDirect(ctx context.Context, w http.ResponseWriter, entityType domain.EntityType, action domain.Action, id string, body any) {
	var payload json.RawMessage
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		payload = encoded
	}

	entry := domain.MutationEntry{
		EntityType: entityType,
		Action:     action,
		EntityID:   id,
		Payload:    payload,
	}
	if err := h.dispatcher.Dispatch(ctx, entry); err != nil {
		writeError(w, http.StatusBadGateway, "remote_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "forwarded": true})
}

// writeWriteError maps local write failures onto the API error vocabulary so
// the UI can distinguish "not even saved locally" from everything else.
func writeWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, sqlite.ErrQueueWrite):
		writeError(w, http.StatusInsufficientStorage, "queue_write_failed", err.Error())
	case errors.Is(err, sqlite.ErrStorageWrite):
		writeError(w, http.StatusInsufficientStorage, "storage_write_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// CreateWorkoutRequest is the UI-facing workout write payload.
type CreateWorkoutRequest struct {
	UserID      string    `json:"user_id"`
	WorkoutType string    `json:"workout_type"`
	StartedAt   time.Time `json:"started_at"`
	DurationMin int       `json:"duration_min"`
	Notes       string    `json:"notes,omitempty"`
}

// Validate checks required fields.
func (r CreateWorkoutRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.WorkoutType == "" {
		return errors.New("workout_type is required")
	}
	if r.DurationMin < 0 {
		return errors.New("duration_min must not be negative")
	}
	return nil
}

func (r CreateWorkoutRequest) toWorkout(id string) domain.Workout {
	return domain.Workout{
		ID:          id,
		UserID:      r.UserID,
		WorkoutType: r.WorkoutType,
		StartedAt:   r.StartedAt,
		DurationMin: r.DurationMin,
		Notes:       r.Notes,
		UpdatedAt:   time.Now().UTC(),
	}
}

// RoutineRequest is the UI-facing routine write payload.
type RoutineRequest struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Active      bool     `json:"active"`
	ExerciseIDs []string `json:"exercise_ids,omitempty"`
}

// Validate checks required fields.
func (r RoutineRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (r RoutineRequest) toRoutine(id string) domain.Routine {
	return domain.Routine{
		ID:          id,
		UserID:      r.UserID,
		Name:        r.Name,
		Active:      r.Active,
		ExerciseIDs: r.ExerciseIDs,
		UpdatedAt:   time.Now().UTC(),
	}
}

// ExerciseRequest is the UI-facing exercise write payload.
type ExerciseRequest struct {
	Name         string `json:"name"`
	MuscleGroup  string `json:"muscle_group"`
	Equipment    string `json:"equipment,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Validate checks required fields.
func (r ExerciseRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.MuscleGroup == "" {
		return errors.New("muscle_group is required")
	}
	return nil
}

func (r ExerciseRequest) toExercise(id string) domain.Exercise {
	return domain.Exercise{
		ID:           id,
		Name:         r.Name,
		MuscleGroup:  r.MuscleGroup,
		Equipment:    r.Equipment,
		Instructions: r.Instructions,
		UpdatedAt:    time.Now().UTC(),
	}
}

// QueueEntryView is the JSON shape of a pending mutation.
type QueueEntryView struct {
	ID            int64           `json:"id"`
	EntityType    string          `json:"entity_type"`
	Action        string          `json:"action"`
	EntityID      string          `json:"entity_id"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	QuarantinedAt *time.Time      `json:"quarantined_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

func toQueueEntryView(entry domain.MutationEntry) QueueEntryView {
	view := QueueEntryView{
		ID:         entry.ID,
		EntityType: string(entry.EntityType),
		Action:     string(entry.Action),
		EntityID:   entry.EntityID,
		Payload:    entry.Payload,
		EnqueuedAt: entry.EnqueuedAt,
		Attempts:   entry.Attempts,
		LastError:  entry.LastError,
	}
	if !entry.NextAttemptAt.IsZero() {
		t := entry.NextAttemptAt
		view.NextAttemptAt = &t
	}
	if !entry.QuarantinedAt.IsZero() {
		t := entry.QuarantinedAt
		view.QuarantinedAt = &t
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
