package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"example.com/fitsync/internal/domain"
)

// MutationQueue is the append-only, timestamp-ordered log of writes not yet
// confirmed by the backend. It is the single source of truth for what remains
// to be sent.
type MutationQueue struct {
	db          *DB
	maxAttempts int
	baseDelay   time.Duration
}

// NewMutationQueue constructs a queue with the given retry policy. An entry
// that fails maxAttempts times is quarantined for manual resolution.
func NewMutationQueue(db *DB, maxAttempts int, baseDelay time.Duration) *MutationQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &MutationQueue{db: db, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// Enqueue durably appends a mutation and returns its assigned id. Ids are
// monotonically increasing within the database lifetime.
func (q *MutationQueue) Enqueue(ctx context.Context, entityType domain.EntityType, action domain.Action, entityID string, payload json.RawMessage) (int64, error) {
	return enqueue(ctx, q.db.db, entityType, action, entityID, payload)
}

func enqueue(ctx context.Context, ex execer, entityType domain.EntityType, action domain.Action, entityID string, payload json.RawMessage) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO mutation_queue (entity_type, action, entity_id, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(entityType), string(action), entityID, string(payload), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: enqueue: %v", ErrQueueWrite, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: enqueue id: %v", ErrQueueWrite, err)
	}
	return id, nil
}

// List returns every entry ordered by enqueue time (entry id as tiebreaker),
// quarantined ones included. The sync engine snapshots this as its replay
// order.
func (q *MutationQueue) List(ctx context.Context) ([]domain.MutationEntry, error) {
	rows, err := q.db.db.QueryContext(ctx, `
		SELECT entry_id, entity_type, action, entity_id, payload, enqueued_at, attempts, next_attempt_at, quarantined_at, last_error
		FROM mutation_queue
		ORDER BY enqueued_at, entry_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrQueueRead, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Quarantined returns only the entries needing manual resolution.
func (q *MutationQueue) Quarantined(ctx context.Context) ([]domain.MutationEntry, error) {
	rows, err := q.db.db.QueryContext(ctx, `
		SELECT entry_id, entity_type, action, entity_id, payload, enqueued_at, attempts, next_attempt_at, quarantined_at, last_error
		FROM mutation_queue
		WHERE quarantined_at IS NOT NULL
		ORDER BY enqueued_at, entry_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list quarantined: %v", ErrQueueRead, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]domain.MutationEntry, error) {
	out := make([]domain.MutationEntry, 0)
	for rows.Next() {
		var (
			entry                      domain.MutationEntry
			entityType, action, body   string
			nextAttempt, quarantinedAt sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entityType, &action, &entry.EntityID, &body, &entry.EnqueuedAt, &entry.Attempts, &nextAttempt, &quarantinedAt, &entry.LastError); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrQueueRead, err)
		}

		et, err := domain.ParseEntityType(entityType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueueRead, err)
		}
		act, err := domain.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueueRead, err)
		}

		entry.EntityType = et
		entry.Action = act
		entry.Payload = json.RawMessage(body)
		if nextAttempt.Valid {
			entry.NextAttemptAt = nextAttempt.Time
		}
		if quarantinedAt.Valid {
			entry.QuarantinedAt = quarantinedAt.Time
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueRead, err)
	}
	return out, nil
}

// Remove deletes a confirmed entry by id. Entries are removed individually as
// the backend confirms them, not FIFO-popped.
func (q *MutationQueue) Remove(ctx context.Context, id int64) error {
	if _, err := q.db.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("%w: remove %d: %v", ErrQueueWrite, id, err)
	}
	return nil
}

// MarkFailed records a failed replay attempt: bumps the attempt counter,
// schedules the exponential-backoff retry window, and quarantines the entry
// once the retry budget is exhausted. Reports whether it quarantined.
func (q *MutationQueue) MarkFailed(ctx context.Context, id int64, cause string) (bool, error) {
	var attempts int
	if err := q.db.db.QueryRowContext(ctx, `SELECT attempts FROM mutation_queue WHERE entry_id = ?`, id).Scan(&attempts); err != nil {
		return false, fmt.Errorf("%w: mark failed %d: %v", ErrQueueRead, id, err)
	}

	attempts++
	now := time.Now().UTC()

	if attempts >= q.maxAttempts {
		_, err := q.db.db.ExecContext(ctx, `
			UPDATE mutation_queue
			SET attempts = ?, quarantined_at = ?, last_error = ?
			WHERE entry_id = ?
		`, attempts, now, cause, id)
		if err != nil {
			return false, fmt.Errorf("%w: quarantine %d: %v", ErrQueueWrite, id, err)
		}
		return true, nil
	}

	_, err := q.db.db.ExecContext(ctx, `
		UPDATE mutation_queue
		SET attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE entry_id = ?
	`, attempts, now.Add(q.backoffDelay(attempts)), cause, id)
	if err != nil {
		return false, fmt.Errorf("%w: mark failed %d: %v", ErrQueueWrite, id, err)
	}
	return false, nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (q *MutationQueue) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * q.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// Pending counts entries still awaiting confirmation, quarantined included.
func (q *MutationQueue) Pending(ctx context.Context) (int, error) {
	var n int
	if err := q.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: pending: %v", ErrQueueRead, err)
	}
	return n, nil
}

// Clear removes every entry. Used on logout/reset.
func (q *MutationQueue) Clear(ctx context.Context) error {
	if _, err := q.db.db.ExecContext(ctx, `DELETE FROM mutation_queue`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrQueueWrite, err)
	}
	return nil
}
