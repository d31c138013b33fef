package feed

import (
	"time"

	"calbridge/core/event"

	"github.com/teambition/rrule-go"
)

// filterRecords keeps the plain events and series roots relevant to
// the sync window. Plain events qualify by start time; series roots by
// overlap, so a weekly meeting that started years ago is still synced
// as long as its rule keeps producing occurrences.
func filterRecords(records []event.Record, start, end time.Time) []event.Record {
	out := make([]event.Record, 0, len(records))
	for _, rec := range records {
		if rec.RRule == "" {
			if inWindow(rec.Start, start, end) {
				out = append(out, rec)
			}
			continue
		}
		if seriesOverlaps(rec, start, end) {
			out = append(out, rec)
		}
	}
	return out
}

// filterOverrides keeps modified instances whose anchor (or start, for
// instances missing one after a lenient parse) falls in the window.
func filterOverrides(overrides []event.Record, start, end time.Time) []event.Record {
	out := make([]event.Record, 0, len(overrides))
	for _, rec := range overrides {
		anchor := rec.Start
		if rec.RecurrenceID != nil {
			anchor = *rec.RecurrenceID
		}
		if inWindow(anchor, start, end) {
			out = append(out, rec)
		}
	}
	return out
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// seriesOverlaps reports whether a recurring series still intersects
// the window. A series starting after the window end cannot; an
// unbounded rule starting before it always does; a bounded rule
// (UNTIL or COUNT) must still yield an occurrence at or after the
// window start.
func seriesOverlaps(rec event.Record, start, end time.Time) bool {
	if rec.Start.After(end) {
		return false
	}

	opt, err := rrule.StrToROption(rec.RRule)
	if err != nil {
		// Let the remote reject it; dropping here would silently lose
		// the series.
		return true
	}
	if opt.Until.IsZero() && opt.Count == 0 {
		return true
	}

	opt.Dtstart = rec.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return true
	}
	return !rule.After(start, true).IsZero()
}
