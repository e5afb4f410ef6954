package entity

import (
	"context"

	"github.com/google/uuid"
)

// FingerprintStore persists per-entity sync state between runs. The store is
// mutated exclusively by the apply engine; the diff planner only reads it.
// Implementations must be safe for concurrent use within a run.
type FingerprintStore interface {
	// Get returns the record for (kind, key), or (nil, nil) when none exists.
	Get(ctx context.Context, kind Kind, key NaturalKey) (*FingerprintRecord, error)

	// List returns every record in the store.
	List(ctx context.Context) ([]*FingerprintRecord, error)

	// Put inserts or replaces the record for its (kind, key).
	Put(ctx context.Context, rec *FingerprintRecord) error

	// Delete removes the record for (kind, key). Deleting an absent record
	// is not an error.
	Delete(ctx context.Context, kind Kind, key NaturalKey) error
}

// AuditLog is the append-only trail of applied operations and run history.
type AuditLog interface {
	Append(ctx context.Context, rec *AuditRecord) error
	RecordRun(ctx context.Context, summary *RunSummary) error

	// LastRun returns the most recent completed run summary, or (nil, nil)
	// when no run has completed yet.
	LastRun(ctx context.Context) (*RunSummary, error)
	RecordsForRun(ctx context.Context, runID uuid.UUID) ([]*AuditRecord, error)
}
