package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"example.com/fitsync/internal/domain"
)

// Queue is the slice of the mutation queue the engine needs.
type Queue interface {
	List(ctx context.Context) ([]domain.MutationEntry, error)
	Remove(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string) (quarantined bool, err error)
}

// Dispatcher routes a queue entry to its remote repository. *Registry is the
// production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry domain.MutationEntry) error
}

// Connectivity reports backend reachability and signals offline-to-online
// transitions.
type Connectivity interface {
	Online() bool
	Restored() <-chan struct{}
}

// State of the engine's two-state machine.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
)

const (
	stateIdle int32 = iota
	stateSyncing
)

// Summary describes the outcome of one sync run.
type Summary struct {
	Attempted   int `json:"attempted"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Quarantined int `json:"quarantined"`
	Skipped     int `json:"skipped"`
}

// Option configures optional behaviour for the Engine.
type Option func(*Engine)

// WithLogger overrides the logger used to report replay failures.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source. Tests use this to control backoff
// eligibility.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine drains the mutation queue against the backend, strictly
// sequentially, one run at a time. It owns the only piece of run state; a
// trigger while a run is active collapses to a no-op rather than queueing.
type Engine struct {
	queue        Queue
	dispatcher   Dispatcher
	connectivity Connectivity
	notifier     Notifier
	logger       *log.Logger
	now          func() time.Time

	state            atomic.Int32
	runs             sync.WaitGroup
	shutdownComplete chan struct{}
}

// NewEngine constructs an Engine. All collaborators are injected so tests can
// substitute fakes and assert call counts.
func NewEngine(queue Queue, dispatcher Dispatcher, connectivity Connectivity, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		queue:            queue,
		dispatcher:       dispatcher,
		connectivity:     connectivity,
		notifier:         notifier,
		logger:           log.New(log.Writer(), "[syncer] ", log.LstdFlags|log.Lshortfile),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports whether a run is active.
func (e *Engine) State() State {
	if e.state.Load() == stateSyncing {
		return StateSyncing
	}
	return StateIdle
}

// Start subscribes to connectivity-restored signals and triggers a run for
// each until the context is cancelled. It should be called in a goroutine,
// once per process lifetime.
func (e *Engine) Start(ctx context.Context) {
	defer close(e.shutdownComplete)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.connectivity.Restored():
			e.TriggerNow(ctx)
		}
	}
}

// Wait blocks until Start has returned and any background run has finished.
func (e *Engine) Wait() {
	<-e.shutdownComplete
	e.runs.Wait()
}

// Trigger claims a sync run and drains it in the background, detached from
// the caller. A manual refresh is fire-and-forget: once the run is claimed
// the requester cannot abort it by going away; it can only observe the
// outcome. Returns false when a run is already active.
func (e *Engine) Trigger() bool {
	if !e.state.CompareAndSwap(stateIdle, stateSyncing) {
		return false
	}
	e.runs.Add(1)
	go func() {
		defer e.runs.Done()
		defer e.state.Store(stateIdle)
		e.run(context.Background())
	}()
	return true
}

// TriggerNow starts a sync run unless one is already active, in which case it
// returns false without effect. Runs synchronously; the context is the
// process lifetime, not a request.
func (e *Engine) TriggerNow(ctx context.Context) bool {
	if !e.state.CompareAndSwap(stateIdle, stateSyncing) {
		return false
	}
	defer e.state.Store(stateIdle)
	e.run(ctx)
	return true
}

func (e *Engine) run(ctx context.Context) {
	if !e.connectivity.Online() {
		return
	}

	// Snapshot the replay order for this run. Entries enqueued after this
	// point wait for the next trigger.
	snapshot, err := e.queue.List(ctx)
	if err != nil {
		e.logger.Printf("queue read failed, skipping run: %v", err)
		return
	}
	if len(snapshot) == 0 {
		return
	}

	start := e.now()
	due := 0
	for _, entry := range snapshot {
		if entry.Due(start) {
			due++
		}
	}
	if due == 0 {
		// Everything is quarantined or backing off; no point announcing a run
		// that replays nothing.
		return
	}
	e.notifier.SyncStarted(due)

	var summary Summary
	// Entities with an undelivered earlier entry this run; later entries for
	// them must not overtake it.
	blocked := make(map[string]bool)

	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			break
		}

		target := entry.Target()
		if blocked[target] || !entry.Due(e.now()) {
			blocked[target] = true
			summary.Skipped++
			continue
		}

		summary.Attempted++
		if dispatchErr := e.dispatcher.Dispatch(ctx, entry); dispatchErr != nil {
			if errors.Is(dispatchErr, context.Canceled) {
				break
			}
			e.logger.Printf("replay failed (entry=%d %s/%s id=%s): %v",
				entry.ID, entry.EntityType, entry.Action, entry.EntityID, dispatchErr)
			blocked[target] = true

			quarantined, markErr := e.queue.MarkFailed(ctx, entry.ID, dispatchErr.Error())
			if markErr != nil {
				e.logger.Printf("mark failed error (entry=%d): %v", entry.ID, markErr)
			}
			if quarantined {
				summary.Quarantined++
				quarantinedCounter.Inc()
			} else {
				summary.Failed++
			}
			failedCounter.Inc()
			continue
		}

		if removeErr := e.queue.Remove(ctx, entry.ID); removeErr != nil {
			// The backend accepted the item but the confirmation was not
			// persisted. Block the entity so reordering cannot happen; the
			// entry will be re-sent, which idempotent remote operations
			// tolerate.
			e.logger.Printf("dequeue failed (entry=%d): %v", entry.ID, removeErr)
			blocked[target] = true
			summary.Failed++
			continue
		}
		summary.Succeeded++
		replayedCounter.Inc()
	}

	runDuration.Observe(e.now().Sub(start).Seconds())
	e.notifier.SyncCompleted(summary)
}
