package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calbridge/core/event"
	"calbridge/feature/sync/reconcile"
	"calbridge/feature/sync/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const previewLimit = 5

// Engine orchestrates one-way sync runs: pull the feed, diff against
// the stored snapshots, apply the plan to the remote calendar, record
// the outcome. All collaborators are injected; the engine holds no
// process-wide state.
type Engine struct {
	feed       Feed
	remote     Remote
	store      Store
	reconciler *reconcile.Reconciler
	cfg        Config
	log        *zap.Logger
	sleeper    Sleeper
}

// New creates a sync engine wired to the given collaborators.
func New(feed Feed, remote Remote, store Store, cfg Config, log *zap.Logger) *Engine {
	return &Engine{
		feed:       feed,
		remote:     remote,
		store:      store,
		reconciler: reconcile.New(store),
		cfg:        cfg,
		log:        log,
		sleeper:    realSleeper{},
	}
}

// SyncOnce executes a single sync run. Per-item remote failures are
// counted and logged but do not stop the run; auth and storage
// failures abort it and mark the session failed. A dry run plans only:
// no session row, no remote calls, no state writes.
func (e *Engine) SyncOnce(ctx context.Context, opts Options) (Result, error) {
	log := e.log.With(zap.String("run_id", uuid.NewString()))

	now := time.Now()
	start := now.AddDate(0, 0, -e.cfg.LookbehindDays)
	end := now.AddDate(0, 0, e.cfg.LookaheadDays)

	var sessionID uint
	if !opts.DryRun {
		var err error
		sessionID, err = e.store.StartSession(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	fail := func(err error) (Result, error) {
		log.Error("Sync run failed", zap.Error(err))
		if !opts.DryRun {
			msg := err.Error()
			status := state.SessionFailed
			if uerr := e.store.UpdateSession(ctx, sessionID, state.SessionPatch{Status: &status, ErrorMessage: &msg}); uerr != nil {
				log.Error("Could not mark session failed", zap.Error(uerr))
			}
		}
		return Result{SessionID: sessionID}, err
	}

	records, overrides, err := e.feed.FetchAndFilter(ctx, start, end)
	if err != nil {
		return fail(err)
	}
	current := append(records, overrides...)
	log.Info("Feed fetched",
		zap.Int("events", len(records)),
		zap.Int("modified_instances", len(overrides)),
		zap.Time("window_start", start),
		zap.Time("window_end", end))

	plan, err := e.reconciler.Plan(ctx, current, reconcile.Options{Force: opts.Force})
	if err != nil {
		return fail(err)
	}

	if opts.DryRun {
		log.Info("Dry run",
			zap.Int("creates", len(plan.Creates)),
			zap.Int("updates", len(plan.Updates)),
			zap.Int("deletes", len(plan.DeleteIDs)))
		return Result{
			Processed: len(current),
			Created:   len(plan.Creates),
			Updated:   len(plan.Updates),
			Deleted:   len(plan.DeleteIDs),
			DryRun:    true,
			Preview:   previewOf(plan),
		}, nil
	}

	res := Result{SessionID: sessionID, Processed: len(current)}
	calendarID := e.remote.CalendarID()

	for _, rec := range plan.Creates {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := e.applyCreate(ctx, log, rec, calendarID); err != nil {
			if isFatal(err) {
				return fail(err)
			}
			res.Errors++
			continue
		}
		res.Created++
	}

	for _, rec := range plan.Updates {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		created, err := e.applyUpdate(ctx, log, rec, calendarID)
		if err != nil {
			if isFatal(err) {
				return fail(err)
			}
			res.Errors++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	if e.cfg.EnableDelete {
		for _, uid := range plan.DeleteIDs {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := e.applyDelete(ctx, log, uid, calendarID); err != nil {
				if isFatal(err) {
					return fail(err)
				}
				res.Errors++
				continue
			}
			res.Deleted++
		}
	} else if len(plan.DeleteIDs) > 0 {
		log.Info("Deletes disabled, leaving removed events on the remote calendar",
			zap.Int("count", len(plan.DeleteIDs)))
	}

	// Unchanged events re-persist their snapshot so the store mirrors
	// the full current window; items the plan touched were written by
	// their apply step, and failed items keep their old snapshot.
	planned := make(map[string]struct{}, len(plan.Creates)+len(plan.Updates)+len(plan.DeleteIDs))
	for _, rec := range plan.Creates {
		planned[rec.UniqueID()] = struct{}{}
	}
	for _, rec := range plan.Updates {
		planned[rec.UniqueID()] = struct{}{}
	}
	for _, uid := range plan.DeleteIDs {
		planned[uid] = struct{}{}
	}
	for _, rec := range current {
		if _, ok := planned[rec.UniqueID()]; ok {
			continue
		}
		if err := e.store.PutSnapshot(ctx, rec); err != nil {
			return fail(err)
		}
	}

	status := state.SessionCompleted
	patch := state.SessionPatch{
		Processed: &res.Processed,
		Created:   &res.Created,
		Updated:   &res.Updated,
		Deleted:   &res.Deleted,
		Errors:    &res.Errors,
		Status:    &status,
	}
	if err := e.store.UpdateSession(ctx, sessionID, patch); err != nil {
		return fail(err)
	}

	log.Info("Sync run completed",
		zap.Uint("session_id", sessionID),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
		zap.Int("errors", res.Errors))
	return res, nil
}

// applyCreate pushes a new event and records its mapping and snapshot.
// The snapshot is written only after the remote accepted the event, so
// a failed create is retried on the next run.
func (e *Engine) applyCreate(ctx context.Context, log *zap.Logger, rec event.Record, calendarID string) error {
	uid := rec.UniqueID()

	remoteID, err := e.remote.Create(ctx, rec)
	if err != nil {
		log.Warn("Create failed", zap.String("unique_uid", uid), zap.Error(err))
		return err
	}

	if err := e.store.PutMapping(ctx, uid, remoteID, calendarID, state.MappingSynced); err != nil {
		return err
	}
	return e.store.PutSnapshot(ctx, rec)
}

// applyUpdate resolves the remote event through the fallback chain:
// stored mapping, then a remote search by the original identity, then
// create-as-new when neither finds it. A stale mapping (remote 404 on
// update) also falls through to create-as-new. Returns whether the
// item ended up created rather than updated.
func (e *Engine) applyUpdate(ctx context.Context, log *zap.Logger, rec event.Record, calendarID string) (bool, error) {
	uid := rec.UniqueID()

	var remoteID string
	mapping, err := e.store.GetMapping(ctx, uid, calendarID)
	if err != nil {
		return false, err
	}
	if mapping != nil {
		remoteID = mapping.RemoteEventID
	}

	if remoteID == "" {
		log.Debug("No mapping for updated event, searching remote", zap.String("unique_uid", uid))
		remoteID, err = e.remote.FindByOriginalUID(ctx, uid)
		if err != nil {
			if fmErr := e.store.FailMapping(ctx, uid, calendarID, err.Error()); fmErr != nil {
				return false, fmErr
			}
			return false, err
		}
	}

	if remoteID != "" {
		err = e.remote.Update(ctx, remoteID, rec)
		var rerr *RemoteError
		if errors.As(err, &rerr) && rerr.Code == 404 {
			log.Warn("Mapping points at a missing remote event, recreating",
				zap.String("unique_uid", uid), zap.String("remote_event_id", remoteID))
			remoteID = ""
		} else if err != nil {
			log.Warn("Update failed", zap.String("unique_uid", uid), zap.Error(err))
			if fmErr := e.store.FailMapping(ctx, uid, calendarID, err.Error()); fmErr != nil {
				return false, fmErr
			}
			return false, err
		}
	}

	created := false
	if remoteID == "" {
		remoteID, err = e.remote.Create(ctx, rec)
		if err != nil {
			log.Warn("Recreate failed", zap.String("unique_uid", uid), zap.Error(err))
			if fmErr := e.store.FailMapping(ctx, uid, calendarID, err.Error()); fmErr != nil {
				return false, fmErr
			}
			return false, err
		}
		created = true
	}

	if err := e.store.PutMapping(ctx, uid, remoteID, calendarID, state.MappingSynced); err != nil {
		return false, err
	}
	if err := e.store.PutSnapshot(ctx, rec); err != nil {
		return false, err
	}
	return created, nil
}

// applyDelete removes the remote event if a mapping exists, then drops
// the local snapshot and mapping. Local state is kept when the remote
// delete fails, so the delete is retried on the next run.
func (e *Engine) applyDelete(ctx context.Context, log *zap.Logger, uniqueUID, calendarID string) error {
	mapping, err := e.store.GetMapping(ctx, uniqueUID, calendarID)
	if err != nil {
		return err
	}

	if mapping != nil {
		if err := e.remote.Delete(ctx, mapping.RemoteEventID); err != nil {
			log.Warn("Delete failed", zap.String("unique_uid", uniqueUID), zap.Error(err))
			return err
		}
	} else {
		log.Debug("No mapping for removed event, dropping local state only",
			zap.String("unique_uid", uniqueUID))
	}

	return e.store.DeleteEvent(ctx, uniqueUID, calendarID)
}

// isFatal reports whether an apply error must abort the run instead of
// being counted against the current item.
func isFatal(err error) bool {
	var auth *AuthError
	var storage *state.StorageError
	return errors.As(err, &auth) || errors.As(err, &storage) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func previewOf(plan reconcile.Plan) *Preview {
	p := &Preview{
		Creates: []string{},
		Updates: []string{},
		Deletes: []string{},
	}
	for _, rec := range plan.Creates[:min(len(plan.Creates), previewLimit)] {
		p.Creates = append(p.Creates, previewLine(rec))
	}
	for _, rec := range plan.Updates[:min(len(plan.Updates), previewLimit)] {
		p.Updates = append(p.Updates, previewLine(rec))
	}
	p.Deletes = append(p.Deletes, plan.DeleteIDs[:min(len(plan.DeleteIDs), previewLimit)]...)
	return p
}

func previewLine(rec event.Record) string {
	return fmt.Sprintf("%s: %s", rec.UniqueID(), rec.Summary)
}
