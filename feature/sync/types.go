package sync

import (
	"context"
	"fmt"
	"time"

	"calbridge/core/event"
	"calbridge/feature/sync/state"
)

// Feed pulls events from the source calendar. FetchAndFilter returns
// the plain events and series roots overlapping the window, plus the
// modified instances of those series, already parsed into records.
type Feed interface {
	FetchAndFilter(ctx context.Context, start, end time.Time) (records, overrides []event.Record, err error)
}

// Remote is the destination calendar. Create returns the remote event
// id; FindByOriginalUID returns "" when no remote event carries the
// given identity marker; Delete treats an already-missing event as
// success.
type Remote interface {
	CalendarID() string
	Create(ctx context.Context, rec event.Record) (string, error)
	Update(ctx context.Context, remoteEventID string, rec event.Record) error
	Delete(ctx context.Context, remoteEventID string) error
	FindByOriginalUID(ctx context.Context, uniqueUID string) (string, error)
}

// Store is the slice of the state store the engine needs. *state.Store
// satisfies it.
type Store interface {
	ListSnapshots(ctx context.Context) ([]state.Snapshot, error)
	PutSnapshot(ctx context.Context, rec event.Record) error
	PutMapping(ctx context.Context, uniqueUID, remoteEventID, calendarID string, status state.MappingStatus) error
	FailMapping(ctx context.Context, uniqueUID, calendarID, message string) error
	GetMapping(ctx context.Context, uniqueUID, calendarID string) (*state.Mapping, error)
	DeleteEvent(ctx context.Context, uniqueUID, calendarID string) error
	StartSession(ctx context.Context) (uint, error)
	UpdateSession(ctx context.Context, id uint, patch state.SessionPatch) error
	PruneSessions(ctx context.Context, olderThanDays int) (int64, error)
}

// Config holds configuration for the sync engine.
type Config struct {
	// IntervalMinutes is the wait between runs in continuous mode.
	IntervalMinutes int `mapstructure:"interval_minutes" default:"30"`
	// CooldownSeconds is the shorter wait after a failed run.
	CooldownSeconds int `mapstructure:"cooldown_seconds" default:"300"`
	// LookbehindDays bounds the sync window into the past.
	LookbehindDays int `mapstructure:"lookbehind_days" default:"30"`
	// LookaheadDays bounds the sync window into the future.
	LookaheadDays int `mapstructure:"lookahead_days" default:"365"`
	// EnableDelete gates the delete phase. With it off, events removed
	// from the feed stay on the remote calendar.
	EnableDelete bool `mapstructure:"enable_delete" default:"true"`
	// SessionRetentionDays controls how far back the session log is kept.
	SessionRetentionDays int `mapstructure:"session_retention_days" default:"90"`
	// StatusPort, when set, serves the status endpoints while continuous
	// mode runs.
	StatusPort string `mapstructure:"status_port" default:""`
}

// Options are per-run flags.
type Options struct {
	// DryRun plans without touching the remote calendar or the store.
	DryRun bool
	// Force re-pushes every known event regardless of change detection.
	Force bool
}

// Result summarizes one sync run.
type Result struct {
	SessionID uint `json:"session_id,omitempty"`
	Processed int  `json:"processed"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	Deleted   int  `json:"deleted"`
	Errors    int  `json:"errors"`

	DryRun  bool     `json:"dry_run,omitempty"`
	Preview *Preview `json:"preview,omitempty"`
}

// Preview lists a bounded sample of what a dry run would have done.
type Preview struct {
	Creates []string `json:"creates"`
	Updates []string `json:"updates"`
	Deletes []string `json:"deletes"`
}

// FeedUnavailableError means the source feed could not be fetched
// after retries. The run fails without touching any state.
type FeedUnavailableError struct {
	URL string
	Err error
}

func (e *FeedUnavailableError) Error() string {
	return fmt.Sprintf("feed unavailable: %s: %v", e.URL, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

// AuthError means the remote calendar rejected our credentials. It is
// fatal to the run; retrying individual items cannot help.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("remote auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError is a per-item remote API failure. The engine records it
// and moves on to the next item.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote calendar error %d: %s", e.Code, e.Message)
}
