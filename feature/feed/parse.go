package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"calbridge/core/event"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"
)

// Parser turns a raw ICS payload into event records, applying the
// configured content processing along the way. Malformed VEVENTs are
// logged and skipped so one bad entry cannot poison the whole feed.
type Parser struct {
	proc ProcessingConfig
	loc  *time.Location
	log  *zap.Logger
}

// NewParser creates a parser. The processing timezone must resolve; it
// anchors date-only and floating times from the feed.
func NewParser(proc ProcessingConfig, log *zap.Logger) (*Parser, error) {
	loc, err := time.LoadLocation(proc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid processing timezone %q: %w", proc.Timezone, err)
	}
	return &Parser{proc: proc, loc: loc, log: log}, nil
}

// Parse splits the payload into regular events (plain events and
// series roots) and modified instances of recurring series.
func (p *Parser) Parse(body []byte) (records, overrides []event.Record, err error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse calendar: %w", err)
	}

	for _, ve := range cal.Events() {
		rec, perr := p.parseVEvent(ve)
		if perr != nil {
			uid := ""
			if prop := ve.GetProperty(ical.ComponentPropertyUniqueId); prop != nil {
				uid = prop.Value
			}
			p.log.Warn("Skipping malformed event", zap.String("uid", uid), zap.Error(perr))
			continue
		}
		if rec.RecurrenceID != nil {
			overrides = append(overrides, rec)
		} else {
			records = append(records, rec)
		}
	}

	p.log.Info("Feed parsed",
		zap.Int("events", len(records)),
		zap.Int("modified_instances", len(overrides)))
	return records, overrides, nil
}

func (p *Parser) parseVEvent(ve *ical.VEvent) (event.Record, error) {
	var rec event.Record

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return rec, errors.New("missing UID")
	}
	rec.UID = uidProp.Value

	if prop := ve.GetProperty(ical.ComponentPropertySequence); prop != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(prop.Value)); err == nil {
			rec.Sequence = n
		}
	}

	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		rec.Summary = prop.Value
	}
	if prop := ve.GetProperty(ical.ComponentPropertyDescription); prop != nil {
		rec.Description = prop.Value
	}
	if prop := ve.GetProperty(ical.ComponentPropertyLocation); prop != nil {
		rec.Location = prop.Value
	}

	rec.Status = "CONFIRMED"
	if prop := ve.GetProperty(ical.ComponentPropertyStatus); prop != nil && prop.Value != "" {
		rec.Status = prop.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return rec, errors.New("missing DTSTART")
	}
	start, allDay, err := p.parseTimeProp(startProp)
	if err != nil {
		return rec, fmt.Errorf("bad DTSTART: %w", err)
	}
	rec.Start = start
	rec.AllDay = allDay

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := p.parseTimeProp(endProp)
		if err != nil {
			return rec, fmt.Errorf("bad DTEND: %w", err)
		}
		rec.End = end
	} else if allDay {
		rec.End = start.AddDate(0, 0, 1)
	} else {
		rec.End = start.Add(time.Hour)
	}

	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		rec.RRule = prop.Value
	}

	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := p.parseTimeValue(part, propTZID(*prop)); err == nil {
				rec.ExDates = append(rec.ExDates, t)
			}
		}
	}

	if prop := ve.GetProperty("RECURRENCE-ID"); prop != nil {
		t, _, err := p.parseTimeProp(prop)
		if err != nil {
			return rec, fmt.Errorf("bad RECURRENCE-ID: %w", err)
		}
		rec.RecurrenceID = &t
	}

	for _, prop := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		att := event.Attendee{
			Email:  strings.TrimPrefix(prop.Value, "mailto:"),
			Role:   "REQ-PARTICIPANT",
			Status: "NEEDS-ACTION",
		}
		if params := prop.ICalParameters; params != nil {
			if v, ok := params["CN"]; ok && len(v) > 0 {
				att.Name = v[0]
			}
			if v, ok := params["ROLE"]; ok && len(v) > 0 {
				att.Role = v[0]
			}
			if v, ok := params["PARTSTAT"]; ok && len(v) > 0 {
				att.Status = v[0]
			}
		}
		rec.Attendees = append(rec.Attendees, att)
	}

	p.processContent(&rec)
	return rec, nil
}

// processContent applies the configured prefix, suffix and length cap.
// The prefix is idempotent so re-parsing an already-prefixed summary
// never stacks it.
func (p *Parser) processContent(rec *event.Record) {
	if p.proc.EventPrefix != "" && !strings.HasPrefix(rec.Summary, p.proc.EventPrefix) {
		rec.Summary = p.proc.EventPrefix + rec.Summary
	}

	if p.proc.DescriptionSuffix != "" {
		if rec.Description != "" {
			rec.Description += p.proc.DescriptionSuffix
		} else {
			rec.Description = strings.TrimSpace(p.proc.DescriptionSuffix)
		}
	}

	if p.proc.MaxDescriptionLength > 3 && utf8.RuneCountInString(rec.Description) > p.proc.MaxDescriptionLength {
		runes := []rune(rec.Description)
		rec.Description = string(runes[:p.proc.MaxDescriptionLength-3]) + "..."
	}
}

// parseTimeProp parses a DTSTART/DTEND/RECURRENCE-ID property. The
// all-day result reports whether the value was date-only.
func (p *Parser) parseTimeProp(prop *ical.IANAProperty) (time.Time, bool, error) {
	v := strings.TrimSpace(prop.Value)

	dateOnly := !strings.Contains(v, "T")
	if params := prop.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			dateOnly = true
		}
	}
	if dateOnly {
		t, err := time.ParseInLocation("20060102", v, p.loc)
		return t, true, err
	}

	t, err := p.parseTimeValue(v, propTZID(*prop))
	return t, false, err
}

// parseTimeValue parses a date-time value, preferring the property's
// TZID, then the processing timezone for floating values.
func (p *Parser) parseTimeValue(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	loc := p.loc
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

func propTZID(prop ical.IANAProperty) string {
	if params := prop.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			return tzs[0]
		}
	}
	return ""
}
