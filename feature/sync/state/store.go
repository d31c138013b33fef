package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"calbridge/core/database"
	"calbridge/core/event"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorageError wraps any failure inside the state store. The engine
// treats it as fatal to the current run: continuing after a failed
// state write would desynchronize the store from the remote calendar.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("state: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store owns the three persisted tables (snapshots, mappings,
// sessions). All access to them goes through its methods; each method
// is a single atomic statement or transaction.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Snapshot{}, &Mapping{}, &Session{}); err != nil {
		return nil, storageErr("migrate", err)
	}
	return &Store{db: db}, nil
}

// PutSnapshot upserts the snapshot for the record's unique identity,
// replacing any prior row entirely.
func (s *Store) PutSnapshot(ctx context.Context, rec event.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return storageErr("put snapshot", err)
	}

	var seriesUID *string
	if id, ok := rec.SeriesID(); ok {
		seriesUID = &id
	}

	snap := Snapshot{
		UniqueUID:   rec.UniqueID(),
		SeriesUID:   seriesUID,
		Sequence:    rec.Sequence,
		Fingerprint: rec.Fingerprint(),
		Payload:     string(payload),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"series_uid", "sequence", "fingerprint", "payload", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return storageErr("put snapshot", err)
	}
	return nil
}

// GetSnapshot returns the snapshot for the given unique identity, or
// nil if none exists.
func (s *Store) GetSnapshot(ctx context.Context, uniqueUID string) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Where("unique_uid = ?", uniqueUID).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get snapshot", err)
	}
	return &snap, nil
}

// ListSnapshots returns every snapshot, most recently updated first.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&snaps).Error; err != nil {
		return nil, storageErr("list snapshots", err)
	}
	return snaps, nil
}

// DeleteSnapshot removes the snapshot for the given unique identity.
// Deleting an identity with no snapshot is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, uniqueUID string) error {
	if err := s.db.WithContext(ctx).Where("unique_uid = ?", uniqueUID).Delete(&Snapshot{}).Error; err != nil {
		return storageErr("delete snapshot", err)
	}
	return nil
}

// PutMapping upserts the remote mapping for (uniqueUID, calendarID)
// and refreshes its last-sync time.
func (s *Store) PutMapping(ctx context.Context, uniqueUID, remoteEventID, calendarID string, status MappingStatus) error {
	m := Mapping{
		UniqueUID:     uniqueUID,
		CalendarID:    calendarID,
		RemoteEventID: remoteEventID,
		LastSyncAt:    time.Now(),
		Status:        status,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_uid"}, {Name: "calendar_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"remote_event_id", "last_sync_at", "status", "error_message"}),
	}).Create(&m).Error
	if err != nil {
		return storageErr("put mapping", err)
	}
	return nil
}

// FailMapping marks an existing mapping failed with the given error
// text. Missing mappings are ignored; failure to push an event that
// was never created remotely leaves no row to mark.
func (s *Store) FailMapping(ctx context.Context, uniqueUID, calendarID, message string) error {
	err := s.db.WithContext(ctx).Model(&Mapping{}).
		Where("unique_uid = ? AND calendar_id = ?", uniqueUID, calendarID).
		Updates(map[string]any{"status": MappingFailed, "error_message": message}).Error
	if err != nil {
		return storageErr("fail mapping", err)
	}
	return nil
}

// GetMapping returns the mapping for (uniqueUID, calendarID), or nil
// if none exists.
func (s *Store) GetMapping(ctx context.Context, uniqueUID, calendarID string) (*Mapping, error) {
	var m Mapping
	err := s.db.WithContext(ctx).
		Where("unique_uid = ? AND calendar_id = ?", uniqueUID, calendarID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get mapping", err)
	}
	return &m, nil
}

// ListMappings returns all mappings for one remote calendar, most
// recently synced first.
func (s *Store) ListMappings(ctx context.Context, calendarID string) ([]Mapping, error) {
	var ms []Mapping
	err := s.db.WithContext(ctx).
		Where("calendar_id = ?", calendarID).
		Order("last_sync_at DESC").
		Find(&ms).Error
	if err != nil {
		return nil, storageErr("list mappings", err)
	}
	return ms, nil
}

// DeleteMapping removes the mapping for (uniqueUID, calendarID).
func (s *Store) DeleteMapping(ctx context.Context, uniqueUID, calendarID string) error {
	err := s.db.WithContext(ctx).
		Where("unique_uid = ? AND calendar_id = ?", uniqueUID, calendarID).
		Delete(&Mapping{}).Error
	if err != nil {
		return storageErr("delete mapping", err)
	}
	return nil
}

// DeleteMappingByRemoteID removes whichever mapping points at the given
// remote event.
func (s *Store) DeleteMappingByRemoteID(ctx context.Context, remoteEventID, calendarID string) error {
	err := s.db.WithContext(ctx).
		Where("remote_event_id = ? AND calendar_id = ?", remoteEventID, calendarID).
		Delete(&Mapping{}).Error
	if err != nil {
		return storageErr("delete mapping by remote id", err)
	}
	return nil
}

// DeleteEvent removes both the snapshot and the mapping for one
// identity in a single transaction, so a crash between the two writes
// can never leave a mapping without a snapshot.
func (s *Store) DeleteEvent(ctx context.Context, uniqueUID, calendarID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("unique_uid = ? AND calendar_id = ?", uniqueUID, calendarID).Delete(&Mapping{}).Error; err != nil {
			return err
		}
		return tx.Where("unique_uid = ?", uniqueUID).Delete(&Snapshot{}).Error
	})
	if err != nil {
		return storageErr("delete event", err)
	}
	return nil
}

// StartSession opens a new session row in the running state and
// returns its id.
func (s *Store) StartSession(ctx context.Context) (uint, error) {
	sess := Session{
		StartedAt: time.Now(),
		Status:    SessionRunning,
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return 0, storageErr("start session", err)
	}
	return sess.ID, nil
}

// UpdateSession applies a partial update to a session row. When the
// patch moves the status to completed or failed, the completion time
// is stamped once; later patches never overwrite it.
func (s *Store) UpdateSession(ctx context.Context, id uint, patch SessionPatch) error {
	updates := map[string]any{}
	if patch.Processed != nil {
		updates["events_processed"] = *patch.Processed
	}
	if patch.Created != nil {
		updates["events_created"] = *patch.Created
	}
	if patch.Updated != nil {
		updates["events_updated"] = *patch.Updated
	}
	if patch.Deleted != nil {
		updates["events_deleted"] = *patch.Deleted
	}
	if patch.Errors != nil {
		updates["errors_count"] = *patch.Errors
	}
	if patch.ErrorMessage != nil {
		updates["error_message"] = *patch.ErrorMessage
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
		if *patch.Status == SessionCompleted || *patch.Status == SessionFailed {
			updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", time.Now())
		}
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return storageErr("update session", err)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// PruneSessions deletes sessions older than the given number of days
// and returns how many were removed.
func (s *Store) PruneSessions(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	res := s.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&Session{})
	if res.Error != nil {
		return 0, storageErr("prune sessions", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats returns aggregate row counts and the start time of the most
// recent completed session.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := s.db.WithContext(ctx).Model(&Snapshot{}).Count(&stats.Snapshots).Error; err != nil {
		return Stats{}, storageErr("stats", err)
	}
	if err := s.db.WithContext(ctx).Model(&Mapping{}).Count(&stats.Mappings).Error; err != nil {
		return Stats{}, storageErr("stats", err)
	}
	if err := s.db.WithContext(ctx).Model(&Session{}).Count(&stats.Sessions).Error; err != nil {
		return Stats{}, storageErr("stats", err)
	}

	var last Session
	err := s.db.WithContext(ctx).
		Where("status = ?", SessionCompleted).
		Order("started_at DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Stats{}, storageErr("stats", err)
	}
	if err == nil {
		t := last.StartedAt
		stats.LastSuccessfulSync = &t
	}

	return stats, nil
}

// Reset wipes all snapshots and mappings and trims the session log to
// the most recent keepSessions rows. Used to recover from a corrupted
// sync state before a full re-sync.
func (s *Store) Reset(ctx context.Context, keepSessions int) (ResetResult, error) {
	var result ResetResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&Snapshot{})
		if res.Error != nil {
			return res.Error
		}
		result.Snapshots = res.RowsAffected

		res = tx.Where("1 = 1").Delete(&Mapping{})
		if res.Error != nil {
			return res.Error
		}
		result.Mappings = res.RowsAffected

		sub := tx.Model(&Session{}).Select("id").Order("started_at DESC").Limit(keepSessions)
		res = tx.Where("id NOT IN (?)", sub).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		result.Sessions = res.RowsAffected
		return nil
	})
	if err != nil {
		return ResetResult{}, storageErr("reset", err)
	}
	return result, nil
}

// CheckSchema verifies that the migrated tables carry every column the
// store reads and writes. Returns one message per problem found; an
// empty slice means the schema is healthy.
func (s *Store) CheckSchema(ctx context.Context) ([]string, error) {
	required := map[string][]string{
		Snapshot{}.TableName(): {"id", "unique_uid", "series_uid", "sequence", "fingerprint", "payload", "created_at", "updated_at"},
		Mapping{}.TableName():  {"id", "unique_uid", "calendar_id", "remote_event_id", "last_sync_at", "status", "error_message"},
		Session{}.TableName():  {"id", "started_at", "completed_at", "events_processed", "events_created", "events_updated", "events_deleted", "errors_count", "status", "error_message"},
	}

	var problems []string
	for table, columns := range required {
		missing, err := database.MissingColumns(s.db.WithContext(ctx), table, columns)
		if err != nil {
			return nil, storageErr("check schema", err)
		}
		for _, col := range missing {
			problems = append(problems, fmt.Sprintf("table %s is missing column %s", table, col))
		}
	}
	sort.Strings(problems)
	return problems, nil
}

// Backup writes a consistent copy of the state database to path using
// sqlite's VACUUM INTO. Only supported on the sqlite driver.
func (s *Store) Backup(ctx context.Context, path string) error {
	if s.db.Dialector.Name() != "sqlite" {
		return storageErr("backup", fmt.Errorf("backup requires the sqlite driver, have %s", s.db.Dialector.Name()))
	}
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return storageErr("backup", err)
	}
	return nil
}
