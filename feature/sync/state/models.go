package state

import (
	"encoding/json"
	"time"

	"calbridge/core/event"
)

// MappingStatus tags an event mapping with its sync outcome.
type MappingStatus string

const (
	MappingSynced  MappingStatus = "synced"
	MappingPending MappingStatus = "pending"
	MappingFailed  MappingStatus = "failed"
)

// SessionStatus is the lifecycle state of a sync session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Snapshot is the persisted last-synced form of one event identity.
// There is at most one live row per UniqueUID; PutSnapshot replaces the
// whole row on every sync of that identity.
type Snapshot struct {
	ID          uint      `gorm:"primaryKey"`
	UniqueUID   string    `gorm:"column:unique_uid;uniqueIndex;not null"`
	SeriesUID   *string   `gorm:"column:series_uid;index"`
	Sequence    int       `gorm:"not null;default:0"`
	Fingerprint string    `gorm:"not null"`
	Payload     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Snapshot) TableName() string { return "event_snapshots" }

// Record decodes the serialized event stored in the snapshot payload.
func (s *Snapshot) Record() (event.Record, error) {
	var rec event.Record
	if err := json.Unmarshal([]byte(s.Payload), &rec); err != nil {
		return event.Record{}, err
	}
	return rec, nil
}

// Mapping links one local event identity to its remote calendar event.
type Mapping struct {
	ID            uint          `gorm:"primaryKey"`
	UniqueUID     string        `gorm:"column:unique_uid;uniqueIndex:idx_mappings_uid_calendar;not null"`
	CalendarID    string        `gorm:"uniqueIndex:idx_mappings_uid_calendar;not null"`
	RemoteEventID string        `gorm:"index;not null"`
	LastSyncAt    time.Time     `gorm:"not null"`
	Status        MappingStatus `gorm:"not null;default:synced"`
	ErrorMessage  *string
}

func (Mapping) TableName() string { return "event_mappings" }

// Session is one row of the append-only sync run log. Counter and
// status fields are patched while the run is in flight; CompletedAt is
// stamped exactly once when the status first leaves running.
type Session struct {
	ID           uint       `gorm:"primaryKey"`
	StartedAt    time.Time  `gorm:"not null"`
	CompletedAt  *time.Time
	Processed    int           `gorm:"column:events_processed;not null;default:0"`
	Created      int           `gorm:"column:events_created;not null;default:0"`
	Updated      int           `gorm:"column:events_updated;not null;default:0"`
	Deleted      int           `gorm:"column:events_deleted;not null;default:0"`
	Errors       int           `gorm:"column:errors_count;not null;default:0"`
	Status       SessionStatus `gorm:"not null;default:running"`
	ErrorMessage *string
}

func (Session) TableName() string { return "sync_sessions" }

// SessionPatch is a structured partial update for a session row. Only
// non-nil fields are written.
type SessionPatch struct {
	Processed    *int
	Created      *int
	Updated      *int
	Deleted      *int
	Errors       *int
	Status       *SessionStatus
	ErrorMessage *string
}

// Stats aggregates store-wide counts for the status surface.
type Stats struct {
	Snapshots          int64      `json:"snapshots"`
	Mappings           int64      `json:"mappings"`
	Sessions           int64      `json:"sessions"`
	LastSuccessfulSync *time.Time `json:"last_successful_sync"`
}

// ResetResult reports how many rows a Reset removed per table.
type ResetResult struct {
	Snapshots int64
	Mappings  int64
	Sessions  int64
}
