// Package feed acquires events from the source ICS calendar.
//
// A Source fetches the payload over HTTP with retries, parses every
// VEVENT into an event record, applies the configured content
// processing (summary prefix, description suffix and length cap) and
// filters the result to the sync window. Series roots are never
// expanded into occurrences; the destination calendar expands
// recurrence rules itself, so the root plus its modified instances is
// the complete series.
package feed
