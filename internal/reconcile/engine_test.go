package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/regsync/internal/diff"
	"github.com/oakmere/regsync/internal/domain/entity"
	"github.com/oakmere/regsync/internal/testutil"
)

var engineNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(reg *testutil.FakeRegistry, store *testutil.MemFingerprintStore, audit *testutil.MemAuditLog) *Engine {
	return NewEngine(reg, store, audit, testutil.NopMetrics{}, nil, 2).
		WithClock(func() time.Time { return engineNow })
}

func deviceEntity(key entity.NaturalKey) *entity.LogicalEntity {
	return &entity.LogicalEntity{
		Kind: entity.KindDevice,
		Key:  key,
		Attributes: map[string]entity.AttributeValue{
			entity.AttrHostname: {Value: string(key), Source: "fortigate"},
		},
		Sources: []string{"fortigate"},
	}
}

func createOp(ent *entity.LogicalEntity) diff.PlannedOp {
	return diff.PlannedOp{
		Operation: entity.OpCreate,
		Kind:      ent.Kind,
		Key:       ent.Key,
		ParentKey: ent.ParentKey,
		Entity:    ent,
		NewHash:   ent.ContentHash(),
	}
}

func TestApplyCreateWritesFingerprintAndAudit(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	ent := deviceEntity("ws-042")
	runID := uuid.New()
	summary := &entity.RunSummary{RunID: runID}

	plan := &diff.Plan{Ops: []diff.PlannedOp{createOp(ent)}}
	require.NoError(t, engine.Apply(context.Background(), runID, plan, summary))

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, reg.Count(entity.OpCreate))

	rec, err := store.Get(context.Background(), entity.KindDevice, "ws-042")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ent.ContentHash(), rec.ContentHash)
	assert.Equal(t, entity.StateActive, rec.State)
	assert.True(t, rec.LastSeenAt.Equal(engineNow))

	require.Len(t, audit.Records, 1)
	assert.Equal(t, entity.ResultSuccess, audit.Records[0].Result)
	assert.Equal(t, "", audit.Records[0].PreviousHash)
	assert.Equal(t, ent.ContentHash(), audit.Records[0].NewHash)
}

func TestApplyFailureLeavesFingerprintUntouched(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	reg.FailKeys["ws-broken"] = errors.New("registry 502")
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	good := deviceEntity("ws-good")
	broken := deviceEntity("ws-broken")
	runID := uuid.New()
	summary := &entity.RunSummary{RunID: runID}

	plan := &diff.Plan{Ops: []diff.PlannedOp{createOp(broken), createOp(good)}}
	require.NoError(t, engine.Apply(context.Background(), runID, plan, summary),
		"a registry failure is contained, not fatal")

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Failed)

	rec, err := store.Get(context.Background(), entity.KindDevice, "ws-broken")
	require.NoError(t, err)
	assert.Nil(t, rec, "failed create must not leave a fingerprint")

	rec, err = store.Get(context.Background(), entity.KindDevice, "ws-good")
	require.NoError(t, err)
	assert.NotNil(t, rec, "other operations in the batch still apply")

	var failures int
	for _, r := range audit.Records {
		if r.Result == entity.ResultFailure {
			failures++
			assert.Contains(t, r.ErrorDetail, "registry 502")
		}
	}
	assert.Equal(t, 1, failures)
}

func TestApplyFailedDevicePoisonsChildren(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	reg.FailKeys["ws-broken"] = errors.New("registry down")
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	dev := deviceEntity("ws-broken")
	iface := &entity.LogicalEntity{
		Kind:      entity.KindInterface,
		Key:       "ws-broken/eth0",
		ParentKey: "ws-broken",
		Attributes: map[string]entity.AttributeValue{
			entity.AttrName: {Value: "eth0", Source: "fortigate"},
		},
		Sources: []string{"fortigate"},
	}

	runID := uuid.New()
	summary := &entity.RunSummary{RunID: runID}
	plan := &diff.Plan{Ops: []diff.PlannedOp{createOp(dev), createOp(iface)}}
	require.NoError(t, engine.Apply(context.Background(), runID, plan, summary))

	assert.Equal(t, 2, summary.Failed, "child is skipped when its device failed")
	assert.Empty(t, reg.CallsFor("ws-broken/eth0"), "no registry call for the poisoned child")

	rec, err := store.Get(context.Background(), entity.KindInterface, "ws-broken/eth0")
	require.NoError(t, err)
	assert.Nil(t, rec, "skipped child keeps no fingerprint and is replanned next run")
}

func TestApplyRetireAndHardDelete(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	missingSince := engineNow.Add(-30 * 24 * time.Hour)
	prev := &entity.FingerprintRecord{
		Kind: entity.KindDevice, Key: "gone", ContentHash: "h1",
		State: entity.StateMissing, MissingSince: &missingSince,
	}
	store.Seed(prev)

	runID := uuid.New()
	summary := &entity.RunSummary{RunID: runID}
	plan := &diff.Plan{Ops: []diff.PlannedOp{{
		Operation: entity.OpRetire, Kind: entity.KindDevice, Key: "gone", Previous: prev,
	}}}
	require.NoError(t, engine.Apply(context.Background(), runID, plan, summary))

	rec, err := store.Get(context.Background(), entity.KindDevice, "gone")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, entity.StateRetired, rec.State)
	require.NotNil(t, rec.RetiredAt)

	// Next run: retired record hard deletes and the fingerprint goes away.
	summary2 := &entity.RunSummary{RunID: uuid.New()}
	plan2 := &diff.Plan{Ops: []diff.PlannedOp{{
		Operation: entity.OpHardDelete, Kind: entity.KindDevice, Key: "gone", Previous: rec,
	}}}
	require.NoError(t, engine.Apply(context.Background(), uuid.New(), plan2, summary2))

	assert.Equal(t, 1, summary2.Deleted)
	final, err := store.Get(context.Background(), entity.KindDevice, "gone")
	require.NoError(t, err)
	assert.Nil(t, final, "record removed after confirmed hard delete")
}

func TestApplyRefreshAndMarkMissing(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	missingSince := engineNow.Add(-time.Hour)
	reappeared := &entity.FingerprintRecord{
		Kind: entity.KindDevice, Key: "back", ContentHash: "h",
		State: entity.StateMissing, MissingSince: &missingSince,
		Sources: []string{"fortigate"},
	}
	vanished := &entity.FingerprintRecord{
		Kind: entity.KindDevice, Key: "away", ContentHash: "h",
		State: entity.StateActive, Sources: []string{"fortigate"},
	}
	store.Seed(reappeared, vanished)

	ent := deviceEntity("back")
	ent.Sources = []string{"fortigate", "intune"}
	summary := &entity.RunSummary{RunID: uuid.New()}
	plan := &diff.Plan{
		Refresh: []diff.Classified{{
			Entity: ent, Class: diff.ClassUnchanged, Previous: reappeared, NewHash: "h",
		}},
		MarkMissing: []*entity.FingerprintRecord{vanished},
	}
	require.NoError(t, engine.Apply(context.Background(), uuid.New(), plan, summary))

	assert.Empty(t, reg.Calls, "refresh and missing markers make no registry calls")
	assert.Equal(t, 1, summary.Unchanged)

	back, _ := store.Get(context.Background(), entity.KindDevice, "back")
	require.NotNil(t, back)
	assert.Equal(t, entity.StateActive, back.State, "reappearance clears the missing state")
	assert.Nil(t, back.MissingSince)
	assert.Equal(t, []string{"fortigate", "intune"}, back.Sources)

	away, _ := store.Get(context.Background(), entity.KindDevice, "away")
	require.NotNil(t, away)
	assert.Equal(t, entity.StateMissing, away.State)
	require.NotNil(t, away.MissingSince)
	assert.True(t, away.MissingSince.Equal(engineNow))
}

func TestApplyStoreFailureAborts(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	store := testutil.NewMemFingerprintStore()
	audit := testutil.NewMemAuditLog()
	engine := newTestEngine(reg, store, audit)

	ent := deviceEntity("ws-042")
	plan := &diff.Plan{Ops: []diff.PlannedOp{createOp(ent)}}
	store.FailNext = errors.New("disk full")

	err := engine.Apply(context.Background(), uuid.New(), plan, &entity.RunSummary{})
	require.Error(t, err, "fingerprint store write failure is fatal to the run")
}
