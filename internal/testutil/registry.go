package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// RegistryCall records one mutation the fake registry received.
type RegistryCall struct {
	Op   entity.Operation
	Kind entity.Kind
	Key  entity.NaturalKey
}

// FakeRegistry implements reconcile.RegistryClient, recording every call and
// optionally failing specific keys.
type FakeRegistry struct {
	mu    sync.Mutex
	Calls []RegistryCall

	// FailKeys maps natural keys to the error their operations return.
	FailKeys map[entity.NaturalKey]error
}

func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{FailKeys: make(map[entity.NaturalKey]error)}
}

func (r *FakeRegistry) record(op entity.Operation, kind entity.Kind, key entity.NaturalKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailKeys[key]; ok {
		return err
	}
	r.Calls = append(r.Calls, RegistryCall{Op: op, Kind: kind, Key: key})
	return nil
}

func (r *FakeRegistry) Create(_ context.Context, ent *entity.LogicalEntity) error {
	return r.record(entity.OpCreate, ent.Kind, ent.Key)
}

func (r *FakeRegistry) Update(_ context.Context, ent *entity.LogicalEntity) error {
	return r.record(entity.OpUpdate, ent.Kind, ent.Key)
}

func (r *FakeRegistry) Retire(_ context.Context, kind entity.Kind, key entity.NaturalKey) error {
	return r.record(entity.OpRetire, kind, key)
}

func (r *FakeRegistry) Delete(_ context.Context, kind entity.Kind, key entity.NaturalKey) error {
	return r.record(entity.OpHardDelete, kind, key)
}

// CallsFor returns the operations recorded for key, in order.
func (r *FakeRegistry) CallsFor(key entity.NaturalKey) []RegistryCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RegistryCall
	for _, c := range r.Calls {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of recorded calls with the given operation.
func (r *FakeRegistry) Count(op entity.Operation) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// NopMetrics satisfies reconcile.Metrics for tests.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(entity.Operation, entity.Result) {}

func (NopMetrics) RecordRun(*entity.RunSummary, time.Duration) {}
