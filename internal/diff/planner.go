// Package diff compares the run's resolved entities against the fingerprint
// store and produces the ordered operation plan the apply engine executes.
// The planner only reads the store; every mutation of fingerprint state
// happens in the apply engine after the corresponding registry call is
// confirmed.
package diff

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/domain/errors"
)

// PlannedOp is one registry mutation in the plan.
type PlannedOp struct {
	Operation entity.Operation
	Kind      entity.Kind
	Key       entity.NaturalKey
	ParentKey entity.NaturalKey

	// Entity carries the payload for create/update; nil for retire and
	// hard delete, which address the registry object by key alone.
	Entity   *entity.LogicalEntity
	Previous *entity.FingerprintRecord
	NewHash  string
}

// Plan is the ordered output of one diff pass. Identical inputs always yield
// an identical plan, operation for operation.
type Plan struct {
	Ops []PlannedOp

	// Refresh lists present-and-unchanged entities whose records only need a
	// last-seen refresh (and a state reset if they were missing). No registry
	// call is made for these.
	Refresh []Classified

	// MarkMissing lists records whose entities vanished this run and whose
	// absence clock starts now.
	MarkMissing []*entity.FingerprintRecord

	Warnings []string
}

type Planner struct {
	grace  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewPlanner(grace time.Duration, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{grace: grace, now: time.Now, logger: logger}
}

// WithClock overrides the planner's time source.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Plan classifies the resolved entities against the fingerprint store and
// emits the ordered operation list. A store read failure aborts the run; it
// is the one dependency the diff cannot reason around.
func (p *Planner) Plan(ctx context.Context, current []entity.LogicalEntity, store entity.FingerprintStore) (*Plan, error) {
	plan := &Plan{}
	now := p.now().UTC()

	seen := make(map[entity.Kind]map[entity.NaturalKey]bool)
	for _, k := range entity.Kinds() {
		seen[k] = make(map[entity.NaturalKey]bool)
	}

	var mutations []PlannedOp
	for i := range current {
		ent := &current[i]
		seen[ent.Kind][ent.Key] = true

		prev, err := store.Get(ctx, ent.Kind, ent.Key)
		if err != nil {
			return nil, errors.NewStoreError("reading fingerprint", err)
		}

		c := Classify(ent, prev)
		switch c.Class {
		case ClassNew:
			mutations = append(mutations, PlannedOp{
				Operation: entity.OpCreate,
				Kind:      ent.Kind,
				Key:       ent.Key,
				ParentKey: ent.ParentKey,
				Entity:    ent,
				NewHash:   c.NewHash,
			})
		case ClassChanged:
			mutations = append(mutations, PlannedOp{
				Operation: entity.OpUpdate,
				Kind:      ent.Kind,
				Key:       ent.Key,
				ParentKey: ent.ParentKey,
				Entity:    ent,
				Previous:  prev,
				NewHash:   c.NewHash,
			})
		case ClassUnchanged:
			plan.Refresh = append(plan.Refresh, c)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		return nil, errors.NewStoreError("listing fingerprints", err)
	}

	var retires, deletes []PlannedOp
	for _, rec := range records {
		if seen[rec.Kind][rec.Key] {
			continue
		}
		op, markMissing := PlanAbsent(rec, now, p.grace)
		if markMissing {
			plan.MarkMissing = append(plan.MarkMissing, rec)
			continue
		}
		switch op {
		case entity.OpRetire:
			retires = append(retires, PlannedOp{
				Operation: entity.OpRetire,
				Kind:      rec.Kind,
				Key:       rec.Key,
				Previous:  rec,
			})
		case entity.OpHardDelete:
			deletes = append(deletes, PlannedOp{
				Operation: entity.OpHardDelete,
				Kind:      rec.Kind,
				Key:       rec.Key,
				Previous:  rec,
			})
		}
	}

	// Creates and updates run parents-first; retires and hard deletes run
	// children-first. Within a tier the key order makes plans reproducible.
	sortOps(mutations, false)
	sortOps(retires, true)
	sortOps(deletes, true)

	plan.Ops = append(plan.Ops, mutations...)
	plan.Ops = append(plan.Ops, retires...)
	plan.Ops = append(plan.Ops, deletes...)

	p.logger.Debug("plan built",
		zap.Int("mutations", len(mutations)),
		zap.Int("retires", len(retires)),
		zap.Int("hard_deletes", len(deletes)),
		zap.Int("unchanged", len(plan.Refresh)),
		zap.Int("newly_missing", len(plan.MarkMissing)))

	return plan, nil
}

func sortOps(ops []PlannedOp, childrenFirst bool) {
	sort.Slice(ops, func(i, j int) bool {
		ti, tj := ops[i].Kind.Tier(), ops[j].Kind.Tier()
		if ti != tj {
			if childrenFirst {
				return ti > tj
			}
			return ti < tj
		}
		if ops[i].Kind != ops[j].Kind {
			return ops[i].Kind < ops[j].Kind
		}
		return ops[i].Key < ops[j].Key
	})
}
