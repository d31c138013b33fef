package gcal

import (
	"strconv"
	"strings"
	"time"

	"calbridge/core/event"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

var statusMap = map[string]string{
	"CONFIRMED": "confirmed",
	"TENTATIVE": "tentative",
	"CANCELLED": "cancelled",
}

var attendeeStatusMap = map[string]string{
	"ACCEPTED":     "accepted",
	"DECLINED":     "declined",
	"TENTATIVE":    "tentative",
	"NEEDS-ACTION": "needsAction",
}

// toGoogleEvent converts a record to the API event shape. A recurrence
// rule the API would reject is dropped, degrading the series to a
// single event rather than failing the whole item.
func (c *Client) toGoogleEvent(rec event.Record) *calendar.Event {
	ev := &calendar.Event{
		Summary:     rec.Summary,
		Description: rec.Description,
		Location:    rec.Location,
		Status:      convertStatus(rec.Status),
	}

	if rec.AllDay {
		ev.Start = &calendar.EventDateTime{Date: rec.Start.Format("2006-01-02")}
		ev.End = &calendar.EventDateTime{Date: rec.End.Format("2006-01-02")}
	} else {
		ev.Start = &calendar.EventDateTime{
			DateTime: rec.Start.Format(time.RFC3339),
			TimeZone: rec.Start.Location().String(),
		}
		ev.End = &calendar.EventDateTime{
			DateTime: rec.End.Format(time.RFC3339),
			TimeZone: rec.End.Location().String(),
		}
	}

	if rec.RRule != "" {
		if rule, ok := sanitizeRRule(rec.RRule); ok {
			ev.Recurrence = []string{"RRULE:" + rule}
			for _, ex := range rec.ExDates {
				ev.Recurrence = append(ev.Recurrence, "EXDATE:"+ex.UTC().Format("20060102T150405Z"))
			}
		} else {
			c.log.Warn("Dropping unsupported recurrence rule",
				zap.String("uid", rec.UID),
				zap.String("rrule", rec.RRule))
		}
	}

	for _, att := range rec.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{
			Email:          strings.TrimPrefix(att.Email, "mailto:"),
			DisplayName:    att.Name,
			ResponseStatus: convertAttendeeStatus(att.Status),
		})
	}

	ev.ExtendedProperties = &calendar.EventExtendedProperties{
		Private: map[string]string{
			markerKey:          rec.UniqueID(),
			"originalSequence": strconv.Itoa(rec.Sequence),
			"syncFingerprint":  rec.Fingerprint(),
		},
	}

	return ev
}

// sanitizeRRule validates a rule against what the API accepts: FREQ is
// required, BYSETPOS/RSCALE/SKIP are rejected, and rules with more
// than ten parts are considered too complex.
func sanitizeRRule(rule string) (string, bool) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return "", false
	}

	upper := strings.ToUpper(rule)
	for _, part := range []string{"BYSETPOS", "RSCALE", "SKIP"} {
		if strings.Contains(upper, part) {
			return "", false
		}
	}
	if !strings.Contains(upper, "FREQ=") {
		return "", false
	}
	if strings.Count(rule, ";") > 10 {
		return "", false
	}
	return rule, true
}

func convertStatus(s string) string {
	if mapped, ok := statusMap[strings.ToUpper(s)]; ok {
		return mapped
	}
	return "confirmed"
}

func convertAttendeeStatus(s string) string {
	if mapped, ok := attendeeStatusMap[strings.ToUpper(s)]; ok {
		return mapped
	}
	return "needsAction"
}
