package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakmere/regsync/internal/domain/errors"
)

// Operation is one planned registry mutation.
type Operation string

const (
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpRetire     Operation = "retire"
	OpHardDelete Operation = "hard_delete"
)

// Result of one applied operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// AuditRecord is one append-only entry in the compliance trail. Records are
// immutable once written and are never updated or deleted by the engine.
type AuditRecord struct {
	ID           uuid.UUID
	RunID        uuid.UUID
	Timestamp    time.Time
	Kind         Kind
	Key          NaturalKey
	Operation    Operation
	PreviousHash string
	NewHash      string
	Result       Result
	ErrorDetail  string
}

// NewAuditRecord creates an audit record with validation. The record starts
// as a success; call Failed to flip it before appending.
func NewAuditRecord(runID uuid.UUID, kind Kind, key NaturalKey, op Operation) (*AuditRecord, error) {
	if runID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_RUN_ID", "run ID is required")
	}
	if key == "" {
		return nil, errors.NewValidationError("MISSING_NATURAL_KEY", "natural key is required")
	}
	switch op {
	case OpCreate, OpUpdate, OpRetire, OpHardDelete:
	default:
		return nil, errors.NewValidationError("INVALID_OPERATION", "operation must be valid")
	}

	return &AuditRecord{
		ID:        uuid.New(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Key:       key,
		Operation: op,
		Result:    ResultSuccess,
	}, nil
}

// WithHashes records the content hash transition the operation performs.
func (r *AuditRecord) WithHashes(previous, next string) *AuditRecord {
	r.PreviousHash = previous
	r.NewHash = next
	return r
}

// Failed marks the record as a failed apply with the error detail.
func (r *AuditRecord) Failed(err error) *AuditRecord {
	r.Result = ResultFailure
	if err != nil {
		r.ErrorDetail = err.Error()
	}
	return r
}
