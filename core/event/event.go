package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a Record by its position in a recurring series.
type Kind int

const (
	// KindPlain is a standalone, non-recurring event.
	KindPlain Kind = iota
	// KindSeriesRoot is the primary record of a recurring series.
	// The remote system expands it; the series is tracked as one unit.
	KindSeriesRoot
	// KindSeriesOverride replaces one specific occurrence of a series.
	KindSeriesOverride
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindSeriesRoot:
		return "series_root"
	case KindSeriesOverride:
		return "series_override"
	default:
		return "unknown"
	}
}

// Attendee is a single participant on an event.
type Attendee struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// Record is the normalized representation of a single feed event, as
// produced by the feed parser. It is immutable for the duration of a
// sync run. A Record is one of three kinds (see Kind); RecurrenceID is
// the anchor instant for series overrides and nil otherwise.
type Record struct {
	UID      string `json:"uid"`
	Sequence int    `json:"sequence"`

	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Status      string `json:"status"`

	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`

	// RRule is the raw recurrence rule text. The core never evaluates
	// it; the remote system expands the series.
	RRule   string      `json:"rrule,omitempty"`
	ExDates []time.Time `json:"exdates,omitempty"`

	// RecurrenceID identifies which occurrence of the series this
	// record overrides. Set only for overrides.
	RecurrenceID *time.Time `json:"recurrence_id,omitempty"`

	Attendees []Attendee `json:"attendees,omitempty"`
}

// Kind derives the record's variant. This is the single place where
// the plain / series-root / override distinction is decided; everything
// else switches on the result.
func (r *Record) Kind() Kind {
	switch {
	case r.RecurrenceID != nil:
		return KindSeriesOverride
	case r.RRule != "":
		return KindSeriesRoot
	default:
		return KindPlain
	}
}

// UniqueID returns the identity used for snapshot lookups.
//
// Plain records and series roots are keyed by their UID alone (a
// series is tracked as a single unit). Each override occurrence gets
// its own identity by appending the serialized anchor instant, so two
// overrides of the same series never collide.
func (r *Record) UniqueID() string {
	switch r.Kind() {
	case KindSeriesOverride:
		return fmt.Sprintf("%s_RECUR_%s", r.UID, r.RecurrenceID.UTC().Format(time.RFC3339))
	case KindSeriesRoot, KindPlain:
		return r.UID
	default:
		return r.UID
	}
}

// SeriesID returns the root UID of the series this record belongs to.
// ok is false for plain records, which belong to no series.
func (r *Record) SeriesID() (string, bool) {
	switch r.Kind() {
	case KindSeriesRoot, KindSeriesOverride:
		return r.UID, true
	default:
		return "", false
	}
}

// Fingerprint computes the content hash used for change detection.
//
// It covers every externally visible semantic field: a change to any
// of them must re-sync the event. The sequence number is deliberately
// not hashed; the reconciler treats forward sequence progress as a
// separate freshness signal, and a feed echoing a stale sequence with
// unchanged content must stay a no-op. The hash is computed on demand
// so a record whose times were substituted in-process never carries a
// stale value.
func (r *Record) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.UID)
	b.WriteByte('|')
	b.WriteString(r.Summary)
	b.WriteByte('|')
	b.WriteString(r.Description)
	b.WriteByte('|')
	b.WriteString(r.Location)
	b.WriteByte('|')
	b.WriteString(r.Status)
	b.WriteByte('|')
	b.WriteString(r.Start.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(r.End.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	if r.AllDay {
		b.WriteString("allday")
	}
	b.WriteByte('|')
	b.WriteString(r.RRule)
	if r.RecurrenceID != nil {
		b.WriteByte('|')
		b.WriteString(r.RecurrenceID.UTC().Format(time.RFC3339))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
