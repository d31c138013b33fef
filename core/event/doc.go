// Package event defines the normalized calendar event record shared by
// the feed parser, the reconciler, and the remote client.
//
// A Record is one of three kinds: a plain event, the root of a
// recurring series, or an override replacing a single occurrence of a
// series. The kind drives two derived identities:
//
//   - UniqueID: the snapshot lookup key. Plain events and series roots
//     use the feed UID; overrides append their anchor instant so every
//     overridden occurrence is tracked separately.
//   - SeriesID: groups roots and overrides of the same series for
//     orphan detection.
//
// # Fingerprint
//
// Fingerprint hashes the semantic content of a record (title, body,
// location, status, times, recurrence rule, and the override anchor).
// Two records with equal fingerprints are considered in sync regardless
// of any revision counter the feed attaches. The sequence number is
// excluded from the hash on purpose: it is a supplementary freshness
// signal, and a stale resend with unchanged content must not look like
// a change.
package event
