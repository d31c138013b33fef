// Package reconcile computes what changed between the current feed
// pull and the persisted snapshots of everything synced before.
//
// The feed has no delta API: every pull is a full set of event records
// for the sync window. Classification therefore works by identity and
// content:
//
//   - an identity never seen before is new
//   - a known identity whose sequence moved forward or whose content
//     fingerprint changed is updated
//   - a known identity absent from the pull is removed
//   - a persisted series member no longer produced under its series
//     is orphaned (the plain id-diff cannot see these, because the
//     series root keeps appearing while its overrides come and go)
//
// Plan merges removed and orphaned ids into one de-duplicated delete
// set and orders application as create, update, delete.
package reconcile
