package reconcile

import (
	"context"
	"sort"

	"calbridge/core/event"
	"calbridge/feature/sync/state"
)

// SnapshotSource is the slice of the state store the reconciler reads.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context) ([]state.Snapshot, error)
}

// Reconciler classifies the current feed pull against the persisted
// snapshots. It only ever reads state; applying the resulting plan is
// the engine's job.
type Reconciler struct {
	store SnapshotSource
}

func New(store SnapshotSource) *Reconciler {
	return &Reconciler{store: store}
}

// ChangeSet is the classified diff of one feed pull.
type ChangeSet struct {
	New        []event.Record
	Updated    []event.Record
	RemovedIDs []string
}

// Options controls classification behavior.
type Options struct {
	// Force classifies every already-known record as updated,
	// bypassing the fingerprint and sequence checks. Used to repair a
	// remote calendar that drifted from the snapshots.
	Force bool
}

// Plan is the ordered set of remote actions for one run. Application
// order is creates, then updates, then deletes.
type Plan struct {
	Creates   []event.Record
	Updates   []event.Record
	DeleteIDs []string
}

func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.DeleteIDs) == 0
}

// DetectChanges classifies every current record as new, updated, or
// in-sync, and reports previously-known identities absent from the
// current pull as removed.
//
// A known record is updated when its sequence number moved forward OR
// its content fingerprint changed. A sequence regression with an
// unchanged fingerprint is deliberately a no-op: feeds have been seen
// echoing stale sequence numbers for unchanged events, and re-pushing
// those would rewrite the remote calendar forever.
func (r *Reconciler) DetectChanges(ctx context.Context, current []event.Record, opts Options) (ChangeSet, error) {
	snaps, err := r.store.ListSnapshots(ctx)
	if err != nil {
		return ChangeSet{}, err
	}
	return detectChanges(current, snaps, opts), nil
}

// FindOrphanedSeriesMembers reports persisted series members that the
// current pull no longer produces.
//
// Recurring series are tracked as one root plus zero or more override
// instances, and the remote system expands the rule itself. When the
// feed owner un-overrides an occurrence (or drops the whole series)
// the plain id-diff in DetectChanges misses it as long as the root
// still appears, so series membership is compared explicitly.
func (r *Reconciler) FindOrphanedSeriesMembers(ctx context.Context, current []event.Record) ([]string, error) {
	snaps, err := r.store.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return orphanedSeriesMembers(current, snaps), nil
}

// Plan loads the snapshots once and builds the full ordered plan:
// creates, updates, and the de-duplicated delete set of removed ids
// and orphaned series members.
func (r *Reconciler) Plan(ctx context.Context, current []event.Record, opts Options) (Plan, error) {
	snaps, err := r.store.ListSnapshots(ctx)
	if err != nil {
		return Plan{}, err
	}

	changes := detectChanges(current, snaps, opts)
	orphans := orphanedSeriesMembers(current, snaps)
	return buildPlan(changes, orphans), nil
}

func detectChanges(current []event.Record, snaps []state.Snapshot, opts Options) ChangeSet {
	known := make(map[string]state.Snapshot, len(snaps))
	for _, s := range snaps {
		known[s.UniqueUID] = s
	}

	var cs ChangeSet
	currentIDs := make(map[string]struct{}, len(current))

	for _, rec := range current {
		id := rec.UniqueID()
		if _, dup := currentIDs[id]; dup {
			// A feed may repeat an identity within one pull; the first
			// occurrence already classified it.
			continue
		}
		currentIDs[id] = struct{}{}

		snap, ok := known[id]
		if !ok {
			cs.New = append(cs.New, rec)
			continue
		}
		if opts.Force || rec.Sequence > snap.Sequence || rec.Fingerprint() != snap.Fingerprint {
			cs.Updated = append(cs.Updated, rec)
		}
	}

	for id := range known {
		if _, ok := currentIDs[id]; !ok {
			cs.RemovedIDs = append(cs.RemovedIDs, id)
		}
	}
	sort.Strings(cs.RemovedIDs)

	return cs
}

func orphanedSeriesMembers(current []event.Record, snaps []state.Snapshot) []string {
	// Series id -> set of identities the current pull produces for it.
	currentSeries := make(map[string]map[string]struct{})
	for _, rec := range current {
		seriesID, ok := rec.SeriesID()
		if !ok {
			continue
		}
		if currentSeries[seriesID] == nil {
			currentSeries[seriesID] = make(map[string]struct{})
		}
		currentSeries[seriesID][rec.UniqueID()] = struct{}{}
	}

	var orphans []string
	for _, snap := range snaps {
		if snap.SeriesUID == nil {
			continue
		}
		members, seriesPresent := currentSeries[*snap.SeriesUID]
		if !seriesPresent {
			// The whole series vanished from the feed.
			orphans = append(orphans, snap.UniqueUID)
			continue
		}
		if _, ok := members[snap.UniqueUID]; !ok {
			orphans = append(orphans, snap.UniqueUID)
		}
	}
	sort.Strings(orphans)

	return orphans
}

func buildPlan(changes ChangeSet, orphans []string) Plan {
	keep := make(map[string]struct{}, len(changes.New)+len(changes.Updated))
	for _, rec := range changes.New {
		keep[rec.UniqueID()] = struct{}{}
	}
	for _, rec := range changes.Updated {
		keep[rec.UniqueID()] = struct{}{}
	}

	// Removed ids and orphans overlap when a whole series disappears;
	// de-duplicate. An id also reported as a create or update is never
	// deleted: preservation wins over loss.
	deleteSet := make(map[string]struct{}, len(changes.RemovedIDs)+len(orphans))
	for _, id := range changes.RemovedIDs {
		deleteSet[id] = struct{}{}
	}
	for _, id := range orphans {
		deleteSet[id] = struct{}{}
	}

	deleteIDs := make([]string, 0, len(deleteSet))
	for id := range deleteSet {
		if _, ok := keep[id]; ok {
			continue
		}
		deleteIDs = append(deleteIDs, id)
	}
	sort.Strings(deleteIDs)

	return Plan{
		Creates:   changes.New,
		Updates:   changes.Updated,
		DeleteIDs: deleteIDs,
	}
}
