package entity

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary aggregates the outcome of one reconciliation run. A run always
// completes and reports its counts; apply failures surface here rather than
// aborting the run.
type RunSummary struct {
	RunID       uuid.UUID
	StartedAt   time.Time
	CompletedAt time.Time

	Created   int
	Updated   int
	Retired   int
	Deleted   int
	Unchanged int
	Failed    int

	Warnings []string
}

// Mutations returns the number of registry-mutating operations that succeeded.
// A second run over unchanged inputs must report zero.
func (s *RunSummary) Mutations() int {
	return s.Created + s.Updated + s.Retired + s.Deleted
}

// Warn appends a run-level warning.
func (s *RunSummary) Warn(detail string) {
	s.Warnings = append(s.Warnings, detail)
}
