package reconcile

import (
	"context"
	"time"

	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/normalize"
)

// RegistryClient is the registry mutation surface the engine drives. The
// implementation owns transport, authentication, rate limiting and retries;
// the engine treats a returned error as "failed after retries". Create and
// Update are expected to be idempotent upserts keyed by natural key.
type RegistryClient interface {
	Create(ctx context.Context, ent *entity.LogicalEntity) error
	Update(ctx context.Context, ent *entity.LogicalEntity) error

	// Retire places the soft-delete marker on the registry object.
	Retire(ctx context.Context, kind entity.Kind, key entity.NaturalKey) error

	// Delete removes the registry object. Deleting an absent object must
	// succeed so interrupted delete sequences can be retried.
	Delete(ctx context.Context, kind entity.Kind, key entity.NaturalKey) error
}

// SourceWorker fetches one source's raw payload for a run. Workers own their
// source's authentication, pagination and rate limits; a failed fetch costs
// that source its contribution for the run and nothing more.
type SourceWorker interface {
	Source() string
	Fetch(ctx context.Context) (normalize.Payload, error)
}

// Metrics receives run and operation outcomes. Implementations must be safe
// for concurrent use; a nil Metrics disables instrumentation.
type Metrics interface {
	RecordOperation(op entity.Operation, result entity.Result)
	RecordRun(summary *entity.RunSummary, duration time.Duration)
}
