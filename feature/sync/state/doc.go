// Package state persists everything the sync engine knows between
// runs: event snapshots, remote mappings, and the session log.
//
// Three tables, each owned exclusively by the Store:
//
//   - event_snapshots: the last-synced content of every event identity,
//     keyed by unique UID with its fingerprint and serialized record.
//     At most one live row per identity; replaced on every sync.
//   - event_mappings: links an event identity to the remote calendar's
//     event id, keyed by (unique UID, calendar id).
//   - sync_sessions: append-only log of sync runs with per-category
//     counters and a running/completed/failed status.
//
// Every method is atomic (one statement or one transaction), so a
// failed write leaves the prior state intact. Failures surface as
// *StorageError; callers treat them as fatal to the current run.
package state
