// Package gcal implements the destination side of the sync against
// the Google Calendar API.
//
// Authentication follows the OAuth client-secret plus token-file flow;
// API failures are mapped onto the engine's error taxonomy (401/403 to
// AuthError, everything else to a per-item RemoteError). Every pushed
// event carries a private extended property with its source identity,
// which doubles as the fallback search key and as the safety filter
// for PurgeSynced.
package gcal
