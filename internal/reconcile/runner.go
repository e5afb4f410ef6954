// Package reconcile orchestrates one full convergence cycle: parallel source
// fetch, normalization, identity resolution, diff planning and idempotent
// apply. A second run over unchanged inputs performs zero registry writes.
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
	"github.com/oakmere/regsync/internal/normalize"
	"github.com/oakmere/regsync/internal/resolve"
)

// Runner owns the run-level lock and the fetch -> resolve -> plan -> apply
// pipeline. Only one run may be in flight; concurrent requests fail fast
// rather than queue, because the fingerprint store is not built for
// interleaved run mutation.
type Runner struct {
	workers      []SourceWorker
	normalizers  map[string]normalize.Normalizer
	resolver     *resolve.Resolver
	planner      *diff.Planner
	engine       *Engine
	store        entity.FingerprintStore
	audit        entity.AuditLog
	metrics      Metrics
	logger       *zap.Logger
	fetchTimeout time.Duration
	now          func() time.Time

	mu sync.Mutex
}

func NewRunner(
	workers []SourceWorker,
	site string,
	resolver *resolve.Resolver,
	planner *diff.Planner,
	engine *Engine,
	store entity.FingerprintStore,
	audit entity.AuditLog,
	metrics Metrics,
	logger *zap.Logger,
	fetchTimeout time.Duration,
) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizers := make(map[string]normalize.Normalizer, len(workers))
	for _, w := range workers {
		n, err := normalize.ForSource(w.Source(), site)
		if err != nil {
			return nil, err
		}
		normalizers[w.Source()] = n
	}
	return &Runner{
		workers:      workers,
		normalizers:  normalizers,
		resolver:     resolver,
		planner:      planner,
		engine:       engine,
		store:        store,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}, nil
}

// WithClock overrides the runner's time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

type fetchResult struct {
	source   string
	entities []entity.CanonicalEntity
	warnings []normalize.Warning
	err      error
}

// RunOnce performs one complete reconciliation run and blocks until it
// finishes. It returns a RunLocked error immediately when another run is in
// flight; any other returned error means the run aborted on fingerprint or
// audit store I/O.
func (r *Runner) RunOnce(ctx context.Context) (*entity.RunSummary, error) {
	if !r.mu.TryLock() {
		return nil, errors.NewRunLockedError()
	}
	defer r.mu.Unlock()

	runID := uuid.New()
	start := r.now().UTC()
	summary := &entity.RunSummary{RunID: runID, StartedAt: start}
	r.logger.Info("run started",
		zap.String("run_id", runID.String()),
		zap.Int("sources", len(r.workers)))

	// Sources are independent; fetch them all in parallel and let a slow or
	// failing source degrade to a warning instead of stalling the rest.
	results := make([]fetchResult, len(r.workers))
	var wg sync.WaitGroup
	for i, w := range r.workers {
		wg.Add(1)
		go func(i int, w SourceWorker) {
			defer wg.Done()
			results[i] = r.fetchOne(ctx, w)
		}(i, w)
	}
	wg.Wait()

	var union []entity.CanonicalEntity
	for _, res := range results {
		if res.err != nil {
			summary.Warn(errors.NewSourceFetchError(res.source, res.err).Error())
			continue
		}
		union = append(union, res.entities...)
		for _, warn := range res.warnings {
			summary.Warn(warn.String())
		}
	}

	// Resolution and planning are single-threaded over the complete union:
	// a partial, interleaved view across sources would break the merge.
	logical, warns := r.resolver.Resolve(union)
	summary.Warnings = append(summary.Warnings, warns...)

	plan, err := r.planner.Plan(ctx, logical, r.store)
	if err != nil {
		return nil, err
	}
	if err := r.engine.Apply(ctx, runID, plan, summary); err != nil {
		return nil, err
	}

	summary.CompletedAt = r.now().UTC()
	if err := r.audit.RecordRun(ctx, summary); err != nil {
		r.logger.Warn("recording run history failed", zap.Error(err))
		summary.Warn("run history not recorded: " + err.Error())
	}
	if r.metrics != nil {
		r.metrics.RecordRun(summary, summary.CompletedAt.Sub(start))
	}

	r.logger.Info("run completed",
		zap.String("run_id", runID.String()),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("retired", summary.Retired),
		zap.Int("deleted", summary.Deleted),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed),
		zap.Int("warnings", len(summary.Warnings)))
	return summary, nil
}

func (r *Runner) fetchOne(ctx context.Context, w SourceWorker) fetchResult {
	fctx := ctx
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	payload, err := w.Fetch(fctx)
	if err != nil {
		r.logger.Warn("source fetch failed",
			zap.String("source", w.Source()),
			zap.Error(err))
		return fetchResult{source: w.Source(), err: err}
	}

	entities, warnings := r.normalizers[w.Source()].Normalize(payload)
	r.logger.Debug("source fetched",
		zap.String("source", w.Source()),
		zap.Int("entities", len(entities)),
		zap.Int("warnings", len(warnings)))
	return fetchResult{source: w.Source(), entities: entities, warnings: warnings}
}
