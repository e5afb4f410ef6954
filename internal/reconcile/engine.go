package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/diff"
	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/domain/errors"
)

// Engine executes a diff plan against the registry. It is the sole writer of
// the fingerprint store and the audit log: a fingerprint is touched only
// after the registry confirmed the corresponding call, so a failed operation
// is re-planned identically on the next run.
type Engine struct {
	registry    RegistryClient
	store       entity.FingerprintStore
	audit       entity.AuditLog
	metrics     Metrics
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewEngine(registry RegistryClient, store entity.FingerprintStore, audit entity.AuditLog, metrics Metrics, logger *zap.Logger, concurrency int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		registry:    registry,
		store:       store,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithClock overrides the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Apply executes the plan, accumulating counts into summary. Individual
// operation failures are contained (audited, counted, retried next run);
// only a fingerprint-store or audit-log write failure aborts.
func (e *Engine) Apply(ctx context.Context, runID uuid.UUID, plan *diff.Plan, summary *entity.RunSummary) error {
	now := e.now().UTC()

	for _, c := range plan.Refresh {
		rec := c.Previous.Clone()
		rec.LastSeenAt = now
		rec.State = entity.StateActive
		rec.MissingSince = nil
		rec.RetiredAt = nil
		rec.Sources = append([]string(nil), c.Entity.Sources...)
		if err := e.store.Put(ctx, rec); err != nil {
			return errors.NewStoreError("refreshing fingerprint", err)
		}
		summary.Unchanged++
	}

	for _, rec := range plan.MarkMissing {
		updated := rec.Clone()
		updated.State = entity.StateMissing
		missingSince := now
		updated.MissingSince = &missingSince
		if err := e.store.Put(ctx, updated); err != nil {
			return errors.NewStoreError("marking fingerprint missing", err)
		}
		e.logger.Info("entity missing, grace period started",
			zap.String("kind", rec.Kind.String()),
			zap.String("key", string(rec.Key)))
	}

	// Failed device applies poison their children for the rest of the run:
	// an interface must never be applied before its device is confirmed.
	failedParents := make(map[entity.NaturalKey]bool)

	for _, batch := range batchOps(plan.Ops) {
		if ctx.Err() != nil {
			summary.Warn("run aborted before all operations were attempted")
			return nil
		}
		if err := e.applyBatch(ctx, runID, batch, summary, failedParents); err != nil {
			return err
		}
	}
	return nil
}

// batchOps splits the ordered plan into batches that may run concurrently:
// operations in one batch share a dependency tier and operation category, so
// nothing in a batch depends on anything else in it.
func batchOps(ops []diff.PlannedOp) [][]diff.PlannedOp {
	var batches [][]diff.PlannedOp
	var cur []diff.PlannedOp
	for _, op := range ops {
		if len(cur) > 0 && (cur[0].Kind.Tier() != op.Kind.Tier() || category(cur[0].Operation) != category(op.Operation)) {
			batches = append(batches, cur)
			cur = nil
		}
		cur = append(cur, op)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func category(op entity.Operation) int {
	switch op {
	case entity.OpCreate, entity.OpUpdate:
		return 0
	case entity.OpRetire:
		return 1
	default:
		return 2
	}
}

func (e *Engine) applyBatch(ctx context.Context, runID uuid.UUID, batch []diff.PlannedOp, summary *entity.RunSummary, failedParents map[entity.NaturalKey]bool) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, e.concurrency)

	for i := range batch {
		op := batch[i]
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.applyOne(ctx, runID, op, summary, failedParents, &mu); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// applyOne performs a single operation end to end. Registry failures are
// contained here; only store/audit failures propagate.
func (e *Engine) applyOne(ctx context.Context, runID uuid.UUID, op diff.PlannedOp, summary *entity.RunSummary, failedParents map[entity.NaturalKey]bool, mu *sync.Mutex) error {
	rec, err := entity.NewAuditRecord(runID, op.Kind, op.Key, op.Operation)
	if err != nil {
		return err
	}
	prevHash := ""
	if op.Previous != nil {
		prevHash = op.Previous.ContentHash
	}
	switch op.Operation {
	case entity.OpCreate, entity.OpUpdate:
		rec.WithHashes(prevHash, op.NewHash)
	case entity.OpRetire:
		rec.WithHashes(prevHash, prevHash)
	case entity.OpHardDelete:
		rec.WithHashes(prevHash, "")
	}

	mu.Lock()
	parentFailed := op.ParentKey != "" && failedParents[op.ParentKey]
	mu.Unlock()

	var applyErr error
	if parentFailed {
		applyErr = errors.NewApplyError("parent apply failed, operation skipped", nil)
	} else {
		// An in-flight registry call is allowed to finish even when the run
		// is being aborted; cancellation only takes effect between operations.
		opCtx := context.WithoutCancel(ctx)
		switch op.Operation {
		case entity.OpCreate:
			applyErr = e.registry.Create(opCtx, op.Entity)
		case entity.OpUpdate:
			applyErr = e.registry.Update(opCtx, op.Entity)
		case entity.OpRetire:
			applyErr = e.registry.Retire(opCtx, op.Kind, op.Key)
		case entity.OpHardDelete:
			applyErr = e.registry.Delete(opCtx, op.Kind, op.Key)
		}
	}

	if applyErr != nil {
		e.logger.Warn("apply failed",
			zap.String("operation", string(op.Operation)),
			zap.String("kind", op.Kind.String()),
			zap.String("key", string(op.Key)),
			zap.Error(applyErr))
		mu.Lock()
		summary.Failed++
		if op.Kind == entity.KindDevice {
			failedParents[op.Key] = true
		}
		mu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordOperation(op.Operation, entity.ResultFailure)
		}
		// The fingerprint stays untouched so the same operation is planned
		// again next run.
		if err := e.audit.Append(ctx, rec.Failed(applyErr)); err != nil {
			return errors.NewStoreError("appending audit record", err)
		}
		return nil
	}

	now := e.now().UTC()
	switch op.Operation {
	case entity.OpCreate, entity.OpUpdate:
		fp := &entity.FingerprintRecord{
			Kind:        op.Kind,
			Key:         op.Key,
			ContentHash: op.NewHash,
			Sources:     append([]string(nil), op.Entity.Sources...),
			LastSeenAt:  now,
			State:       entity.StateActive,
		}
		if err := e.store.Put(ctx, fp); err != nil {
			return errors.NewStoreError("writing fingerprint", err)
		}
	case entity.OpRetire:
		fp := op.Previous.Clone()
		fp.State = entity.StateRetired
		retiredAt := now
		fp.RetiredAt = &retiredAt
		if err := e.store.Put(ctx, fp); err != nil {
			return errors.NewStoreError("writing fingerprint", err)
		}
	case entity.OpHardDelete:
		if err := e.store.Delete(ctx, op.Kind, op.Key); err != nil {
			return errors.NewStoreError("removing fingerprint", err)
		}
	}

	if err := e.audit.Append(ctx, rec); err != nil {
		return errors.NewStoreError("appending audit record", err)
	}
	if e.metrics != nil {
		e.metrics.RecordOperation(op.Operation, entity.ResultSuccess)
	}

	mu.Lock()
	switch op.Operation {
	case entity.OpCreate:
		summary.Created++
	case entity.OpUpdate:
		summary.Updated++
	case entity.OpRetire:
		summary.Retired++
	case entity.OpHardDelete:
		summary.Deleted++
	}
	mu.Unlock()

	e.logger.Info("applied",
		zap.String("operation", string(op.Operation)),
		zap.String("kind", op.Kind.String()),
		zap.String("key", string(op.Key)))
	return nil
}
