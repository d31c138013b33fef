package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"calbridge/core/event"
	"calbridge/feature/sync/reconcile"
	"calbridge/feature/sync/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSnapshots serves a fixed snapshot list, like the store would.
type fakeSnapshots struct {
	snaps []state.Snapshot
	err   error
}

func (f *fakeSnapshots) ListSnapshots(ctx context.Context) ([]state.Snapshot, error) {
	return f.snaps, f.err
}

func snapshotOf(rec event.Record) state.Snapshot {
	var seriesUID *string
	if id, ok := rec.SeriesID(); ok {
		seriesUID = &id
	}
	return state.Snapshot{
		UniqueUID:   rec.UniqueID(),
		SeriesUID:   seriesUID,
		Sequence:    rec.Sequence,
		Fingerprint: rec.Fingerprint(),
	}
}

func snapshotsOf(recs ...event.Record) []state.Snapshot {
	out := make([]state.Snapshot, 0, len(recs))
	for _, r := range recs {
		out = append(out, snapshotOf(r))
	}
	return out
}

func plain(uid, summary string) event.Record {
	return event.Record{
		UID:     uid,
		Summary: summary,
		Status:  "CONFIRMED",
		Start:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func seriesRoot(uid string) event.Record {
	r := plain(uid, "Series "+uid)
	r.RRule = "FREQ=WEEKLY;BYDAY=FR"
	return r
}

func override(uid string, at time.Time) event.Record {
	r := plain(uid, "Moved occurrence")
	r.Start = at
	r.End = at.Add(time.Hour)
	r.RecurrenceID = &at
	return r
}

func ids(recs []event.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.UniqueID())
	}
	return out
}

func TestDetectChanges_NewItems(t *testing.T) {
	ctx := context.Background()
	r := reconcile.New(&fakeSnapshots{})

	current := []event.Record{plain("a", "A"), plain("b", "B")}
	cs, err := r.DetectChanges(ctx, current, reconcile.Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, ids(cs.New))
	assert.Empty(t, cs.Updated)
	assert.Empty(t, cs.RemovedIDs)
}

func TestDetectChanges_DuplicateIdentityClassifiedOnce(t *testing.T) {
	ctx := context.Background()
	r := reconcile.New(&fakeSnapshots{})

	current := []event.Record{plain("a", "A"), plain("a", "A")}
	cs, err := r.DetectChanges(ctx, current, reconcile.Options{})
	require.NoError(t, err)

	assert.Len(t, cs.New, 1)
}

func TestDetectChanges_Idempotent(t *testing.T) {
	ctx := context.Background()
	current := []event.Record{plain("a", "A"), seriesRoot("c")}
	r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(current...)})

	for i := 0; i < 2; i++ {
		cs, err := r.DetectChanges(ctx, current, reconcile.Options{})
		require.NoError(t, err)
		assert.Empty(t, cs.New)
		assert.Empty(t, cs.Updated)
		assert.Empty(t, cs.RemovedIDs)
	}
}

func TestDetectChanges_UpdateTriggers(t *testing.T) {
	ctx := context.Background()

	base := plain("a", "A")
	base.Sequence = 5

	tests := []struct {
		name       string
		mutate     func(*event.Record)
		wantUpdate bool
	}{
		{"Unchanged", func(r *event.Record) {}, false},
		{"SequenceForward", func(r *event.Record) { r.Sequence = 6 }, true},
		{"FingerprintChanged", func(r *event.Record) { r.Summary = "A'" }, true},
		// Content change with a LOWER sequence still triggers.
		{"FingerprintChangedSequenceLower", func(r *event.Record) { r.Summary = "A'"; r.Sequence = 2 }, true},
		// Sequence regression alone is stale-resend protection, not an update.
		{"SequenceRegressionAlone", func(r *event.Record) { r.Sequence = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(base)})

			cur := base
			tt.mutate(&cur)

			cs, err := r.DetectChanges(ctx, []event.Record{cur}, reconcile.Options{})
			require.NoError(t, err)

			if tt.wantUpdate {
				assert.Equal(t, []string{"a"}, ids(cs.Updated))
			} else {
				assert.Empty(t, cs.Updated)
			}
			assert.Empty(t, cs.New)
		})
	}
}

func TestDetectChanges_Force(t *testing.T) {
	ctx := context.Background()
	known := plain("a", "A")
	r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(known)})

	cs, err := r.DetectChanges(ctx, []event.Record{known, plain("b", "B")}, reconcile.Options{Force: true})
	require.NoError(t, err)

	// Force re-pushes known records but never invents creates.
	assert.Equal(t, []string{"a"}, ids(cs.Updated))
	assert.Equal(t, []string{"b"}, ids(cs.New))
}

func TestDetectChanges_Removal(t *testing.T) {
	ctx := context.Background()
	a, b := plain("a", "A"), plain("b", "B")
	r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(a, b)})

	cs, err := r.DetectChanges(ctx, []event.Record{a}, reconcile.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, cs.RemovedIDs)
	assert.NotContains(t, cs.RemovedIDs, "a")
}

func TestFindOrphanedSeriesMembers(t *testing.T) {
	ctx := context.Background()

	root := seriesRoot("standup")
	ov1 := override("standup", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	ov2 := override("standup", time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC))
	ov3 := override("standup", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))

	t.Run("DroppedOverrides", func(t *testing.T) {
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(root, ov1, ov2, ov3)})

		// Root still present, only one of three overrides survives.
		orphans, err := r.FindOrphanedSeriesMembers(ctx, []event.Record{root, ov2})
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{ov1.UniqueID(), ov3.UniqueID()}, orphans)
	})

	t.Run("WholeSeriesGone", func(t *testing.T) {
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(root, ov1, ov2)})

		orphans, err := r.FindOrphanedSeriesMembers(ctx, []event.Record{plain("a", "A")})
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{root.UniqueID(), ov1.UniqueID(), ov2.UniqueID()}, orphans)
	})

	t.Run("PlainEventsIgnored", func(t *testing.T) {
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(plain("a", "A"))})

		orphans, err := r.FindOrphanedSeriesMembers(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, orphans)
	})
}

func TestPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondRunScenario", func(t *testing.T) {
		// First run synced: A, B, series root C, one override of C.
		a, b := plain("A", "Event A"), plain("B", "Event B")
		root := seriesRoot("C")
		ov := override("C", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(a, b, root, ov)})

		// Second pull: A unchanged, C root present, override gone, B gone.
		plan, err := r.Plan(ctx, []event.Record{a, root}, reconcile.Options{})
		require.NoError(t, err)

		assert.Empty(t, plan.Creates)
		assert.Empty(t, plan.Updates)
		assert.ElementsMatch(t, []string{"B", ov.UniqueID()}, plan.DeleteIDs)
	})

	t.Run("DeleteSetDeduplicated", func(t *testing.T) {
		// A vanished series root is both a removed id and an orphan;
		// it must appear once.
		root := seriesRoot("C")
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(root)})

		plan, err := r.Plan(ctx, nil, reconcile.Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, plan.DeleteIDs)
	})

	t.Run("PreservationOverLoss", func(t *testing.T) {
		// An override produced by the current pull is never deleted,
		// even while its sibling is orphaned.
		root := seriesRoot("C")
		ov1 := override("C", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
		ov2 := override("C", time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC))
		r := reconcile.New(&fakeSnapshots{snaps: snapshotsOf(root, ov1, ov2)})

		plan, err := r.Plan(ctx, []event.Record{root, ov1}, reconcile.Options{})
		require.NoError(t, err)

		assert.Equal(t, []string{ov2.UniqueID()}, plan.DeleteIDs)
	})

	t.Run("Empty", func(t *testing.T) {
		r := reconcile.New(&fakeSnapshots{})
		plan, err := r.Plan(ctx, nil, reconcile.Options{})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
	})
}

func TestReconciler_StoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("storage down")
	r := reconcile.New(&fakeSnapshots{err: boom})

	_, err := r.DetectChanges(ctx, nil, reconcile.Options{})
	assert.ErrorIs(t, err, boom)

	_, err = r.FindOrphanedSeriesMembers(ctx, nil)
	assert.ErrorIs(t, err, boom)

	_, err = r.Plan(ctx, nil, reconcile.Options{})
	assert.ErrorIs(t, err, boom)
}
