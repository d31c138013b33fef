// Package sync orchestrates one-way calendar synchronization.
//
// The Engine ties the collaborators together: a Feed that pulls and
// parses the source calendar, the snapshot/mapping/session store, the
// reconciler that classifies changes, and a Remote that applies them
// to the destination calendar. One run is a full pull: fetch the
// window, plan against the stored snapshots, then apply the plan in
// create, update, delete order.
//
// # Failure handling
//
// Per-item remote failures (RemoteError) are counted against the run
// and the next item proceeds; the failed item's snapshot is not
// advanced, so the same change is retried on the next run. Feed, auth
// and storage failures abort the run and mark its session failed.
//
// Updates walk a fallback chain before giving up on an item: the
// stored mapping, a remote search by the original identity, and
// finally creating the event anew.
//
// # Continuous mode
//
// StartContinuous repeats runs on a fixed interval with a shorter
// cool-down after failures, prunes old sessions daily, and exposes
// read-only status endpoints over Fiber when a port is configured.
package sync
