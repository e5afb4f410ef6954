package entity

import (
	"fmt"
	"time"
)

// LifecycleState tracks an entity's progress through the grace-period
// deletion machine: active -> missing -> retired -> (record removed).
// A missing entity that reappears before the grace threshold returns to
// active with no destructive operation ever planned.
type LifecycleState int

const (
	// StateActive: the entity was seen in the most recent run.
	StateActive LifecycleState = iota

	// StateMissing: the entity was absent from the most recent run;
	// MissingSince records when the absence began.
	StateMissing

	// StateRetired: the soft-delete marker was confirmed in the registry;
	// the hard delete is pending and retried until it succeeds.
	StateRetired
)

func (s LifecycleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateMissing:
		return "missing"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// ParseLifecycleState converts a stored string back into a LifecycleState.
func ParseLifecycleState(s string) (LifecycleState, error) {
	switch s {
	case "active":
		return StateActive, nil
	case "missing":
		return StateMissing, nil
	case "retired":
		return StateRetired, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle state %q", s)
	}
}

// FingerprintRecord is the per-entity sync state: the content hash last
// confirmed against the registry, the sources that contributed, and the
// lifecycle state. One record exists per logical entity; it is created on
// first successful apply and removed only after a confirmed hard delete.
type FingerprintRecord struct {
	Kind        Kind
	Key         NaturalKey
	ContentHash string
	Sources     []string
	LastSeenAt  time.Time
	State       LifecycleState

	MissingSince *time.Time
	RetiredAt    *time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *FingerprintRecord) Clone() *FingerprintRecord {
	c := *r
	c.Sources = append([]string(nil), r.Sources...)
	if r.MissingSince != nil {
		t := *r.MissingSince
		c.MissingSince = &t
	}
	if r.RetiredAt != nil {
		t := *r.RetiredAt
		c.RetiredAt = &t
	}
	return &c
}
