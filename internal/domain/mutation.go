package domain

import (
	"encoding/json"
	"time"
)

// MutationEntry is a pending write recorded in the mutation queue. The
// payload is exactly the JSON document the equivalent online call would have
// sent; no separate offline wire format exists.
type MutationEntry struct {
	ID            int64
	EntityType    EntityType
	Action        Action
	EntityID      string
	Payload       json.RawMessage
	EnqueuedAt    time.Time
	Attempts      int
	NextAttemptAt time.Time
	QuarantinedAt time.Time
	LastError     string
}

// Quarantined reports whether the entry has exhausted its retry budget and
// needs manual resolution.
func (e MutationEntry) Quarantined() bool {
	return !e.QuarantinedAt.IsZero()
}

// Due reports whether the entry is eligible for replay at the given time.
func (e MutationEntry) Due(now time.Time) bool {
	if e.Quarantined() {
		return false
	}
	return e.NextAttemptAt.IsZero() || !e.NextAttemptAt.After(now)
}

// Target returns a key identifying the entity this entry mutates. Entries
// sharing a target must reach the backend in enqueue order.
func (e MutationEntry) Target() string {
	return string(e.EntityType) + ":" + e.EntityID
}
