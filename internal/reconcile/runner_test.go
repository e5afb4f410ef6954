package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/regsync/internal/diff"
	"github.com/oakmere/regsync/internal/domain/entity"
	apperrors "github.com/oakmere/regsync/internal/domain/errors"
	"github.com/oakmere/regsync/internal/normalize"
	"github.com/oakmere/regsync/internal/resolve"
	"github.com/oakmere/regsync/internal/testutil"
)

// stubWorker returns a fixed payload or error; fetchStarted, when set, is
// closed on entry and blockUntil awaited before returning.
type stubWorker struct {
	source       string
	payload      normalize.Payload
	err          error
	fetchStarted chan struct{}
	blockUntil   chan struct{}
}

func (w *stubWorker) Source() string { return w.source }

func (w *stubWorker) Fetch(ctx context.Context) (normalize.Payload, error) {
	if w.fetchStarted != nil {
		close(w.fetchStarted)
	}
	if w.blockUntil != nil {
		<-w.blockUntil
	}
	return w.payload, w.err
}

type runnerFixture struct {
	runner *Runner
	reg    *testutil.FakeRegistry
	store  *testutil.MemFingerprintStore
	audit  *testutil.MemAuditLog
}

func newRunnerFixture(t *testing.T, workers ...SourceWorker) *runnerFixture {
	t.Helper()
	reg := testutil.NewFakeRegistry()
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()

	resolver := resolve.NewResolver(resolve.DefaultPrecedence(), nil)
	planner := diff.NewPlanner(7*24*time.Hour, nil)
	engine := NewEngine(reg, store, audit, testutil.NopMetrics{}, nil, 2)

	runner, err := NewRunner(workers, "hq", resolver, planner, engine,
		store, audit, testutil.NopMetrics{}, nil, time.Minute)
	require.NoError(t, err)

	return &runnerFixture{runner: runner, reg: reg, store: store, audit: audit}
}

func TestRunOnceMergesSourcesIntoOneCreate(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fgt := &stubWorker{
		source: normalize.SourceFortiGate,
		payload: normalize.Payload{
			FetchedAt: fetched,
			Devices: []normalize.RawRecord{
				{"hostname": "ws-042", "serial": "X1", "os_name": "Windows"},
			},
		},
	}
	intune := &stubWorker{
		source: normalize.SourceIntune,
		payload: normalize.Payload{
			FetchedAt: fetched,
			Devices: []normalize.RawRecord{
				{"deviceName": "WS-042", "serialNumber": "X1", "userPrincipalName": "alice@example.com"},
			},
		},
	}

	f := newRunnerFixture(t, fgt, intune)
	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created, "same serial from two sources is one device")
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, f.store.Len())

	require.Len(t, f.reg.Calls, 1)
	assert.Equal(t, entity.OpCreate, f.reg.Calls[0].Op)
	assert.Equal(t, entity.NaturalKey("ws-042|x1"), f.reg.Calls[0].Key)
}

func TestRunOnceSecondRunIsIdempotent(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := &stubWorker{
		source: normalize.SourceFortiGate,
		payload: normalize.Payload{
			FetchedAt: fetched,
			Devices: []normalize.RawRecord{
				{"hostname": "fw-01", "serial": "FGT1", "hardware_type": "Firewall"},
			},
			Interfaces: []normalize.RawRecord{
				{"name": "port1", "device": "fw-01", "status": "up"},
			},
		},
	}

	f := newRunnerFixture(t, w)
	first, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Mutations())

	second, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Mutations(), "unchanged inputs must produce zero registry writes")
	assert.Equal(t, 2, second.Unchanged)
	assert.Len(t, f.reg.Calls, 2, "no additional calls on the second run")
}

func TestRunOnceFetchFailureDegradesToWarning(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	good := &stubWorker{
		source: normalize.SourceFortiGate,
		payload: normalize.Payload{
			FetchedAt: fetched,
			Devices:   []normalize.RawRecord{{"hostname": "fw-01"}},
		},
	}
	bad := &stubWorker{source: normalize.SourceESET, err: errors.New("connection refused")}

	f := newRunnerFixture(t, good, bad)
	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err, "one failed source does not fail the run")

	assert.Equal(t, 1, summary.Created)
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "eset")
}

func TestRunOnceMissingSourceDoesNotRetireWithinGrace(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := &stubWorker{
		source: normalize.SourceFortiGate,
		payload: normalize.Payload{
			FetchedAt: fetched,
			Devices:   []normalize.RawRecord{{"hostname": "ws-042"}},
		},
	}
	f := newRunnerFixture(t, w)

	_, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	// The device vanishes; the first absent run only starts the clock.
	w.payload.Devices = nil
	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Mutations())

	rec, _ := f.store.Get(context.Background(), entity.KindDevice, "ws-042")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StateMissing, rec.State)

	// It reappears inside the grace period: back to active, nothing destroyed.
	w.payload.Devices = []normalize.RawRecord{{"hostname": "ws-042"}}
	summary, err = f.runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Mutations())
	assert.Equal(t, 0, f.reg.Count(entity.OpRetire))
	assert.Equal(t, 0, f.reg.Count(entity.OpHardDelete))

	rec, _ = f.store.Get(context.Background(), entity.KindDevice, "ws-042")
	require.NotNil(t, rec)
	assert.Equal(t, entity.StateActive, rec.State)
	assert.Nil(t, rec.MissingSince)
}

func TestRunOnceLockedWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	w := &stubWorker{
		source:       normalize.SourceFortiGate,
		fetchStarted: started,
		blockUntil:   release,
	}
	f := newRunnerFixture(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := f.runner.RunOnce(context.Background())
		done <- err
	}()

	<-started
	_, err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRunLocked))

	close(release)
	require.NoError(t, <-done)
}

func TestRunOnceRecordsRunHistory(t *testing.T) {
	w := &stubWorker{
		source: normalize.SourceFortiGate,
		payload: normalize.Payload{
			FetchedAt: time.Now().UTC(),
			Devices:   []normalize.RawRecord{{"hostname": "ws-1"}},
		},
	}
	f := newRunnerFixture(t, w)

	summary, err := f.runner.RunOnce(context.Background())
	require.NoError(t, err)

	last, err := f.audit.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, summary.RunID, last.RunID)
	assert.Equal(t, 1, last.Created)

	records, err := f.audit.RecordsForRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.OpCreate, records[0].Operation)
}
