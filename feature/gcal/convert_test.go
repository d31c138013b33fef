package gcal

import (
	"testing"
	"time"

	"calbridge/core/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient() *Client {
	return &Client{cfg: Config{CalendarID: "primary"}, log: zap.NewNop()}
}

func baseRecord() event.Record {
	return event.Record{
		UID:         "uid-1",
		Sequence:    3,
		Summary:     "Design review",
		Description: "Bring sketches",
		Location:    "Room 4",
		Status:      "CONFIRMED",
		Start:       time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
	}
}

func TestToGoogleEvent_TimedEvent(t *testing.T) {
	rec := baseRecord()
	ev := testClient().toGoogleEvent(rec)

	assert.Equal(t, "Design review", ev.Summary)
	assert.Equal(t, "Bring sketches", ev.Description)
	assert.Equal(t, "Room 4", ev.Location)
	assert.Equal(t, "confirmed", ev.Status)

	require.NotNil(t, ev.Start)
	assert.Equal(t, "2024-05-06T09:00:00Z", ev.Start.DateTime)
	assert.Equal(t, "UTC", ev.Start.TimeZone)
	assert.Empty(t, ev.Start.Date)
	require.NotNil(t, ev.End)
	assert.Equal(t, "2024-05-06T10:00:00Z", ev.End.DateTime)
}

func TestToGoogleEvent_AllDayEvent(t *testing.T) {
	rec := baseRecord()
	rec.AllDay = true
	rec.End = rec.Start.AddDate(0, 0, 1)

	ev := testClient().toGoogleEvent(rec)

	require.NotNil(t, ev.Start)
	assert.Equal(t, "2024-05-06", ev.Start.Date)
	assert.Empty(t, ev.Start.DateTime)
	assert.Equal(t, "2024-05-07", ev.End.Date)
}

func TestToGoogleEvent_RecurrenceWithExDates(t *testing.T) {
	rec := baseRecord()
	rec.RRule = "FREQ=WEEKLY;BYDAY=MO"
	rec.ExDates = []time.Time{
		time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC),
	}

	ev := testClient().toGoogleEvent(rec)

	require.Len(t, ev.Recurrence, 3)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO", ev.Recurrence[0])
	assert.Equal(t, "EXDATE:20240513T090000Z", ev.Recurrence[1])
	assert.Equal(t, "EXDATE:20240520T090000Z", ev.Recurrence[2])
}

func TestToGoogleEvent_UnsupportedRuleDropped(t *testing.T) {
	rec := baseRecord()
	rec.RRule = "FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO"
	rec.ExDates = []time.Time{time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)}

	ev := testClient().toGoogleEvent(rec)
	assert.Empty(t, ev.Recurrence)
}

func TestToGoogleEvent_Attendees(t *testing.T) {
	rec := baseRecord()
	rec.Attendees = []event.Attendee{
		{Email: "mailto:jane@example.com", Name: "Jane Doe", Role: "CHAIR", Status: "ACCEPTED"},
		{Email: "sam@example.com", Status: "NEEDS-ACTION"},
	}

	ev := testClient().toGoogleEvent(rec)
	require.Len(t, ev.Attendees, 2)

	assert.Equal(t, "jane@example.com", ev.Attendees[0].Email)
	assert.Equal(t, "Jane Doe", ev.Attendees[0].DisplayName)
	assert.Equal(t, "accepted", ev.Attendees[0].ResponseStatus)
	assert.Equal(t, "needsAction", ev.Attendees[1].ResponseStatus)
}

func TestToGoogleEvent_IdentityMarker(t *testing.T) {
	anchor := time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)
	rec := baseRecord()
	rec.RecurrenceID = &anchor

	ev := testClient().toGoogleEvent(rec)

	require.NotNil(t, ev.ExtendedProperties)
	private := ev.ExtendedProperties.Private
	assert.Equal(t, rec.UniqueID(), private["originalUID"])
	assert.Equal(t, "3", private["originalSequence"])
	assert.Equal(t, rec.Fingerprint(), private["syncFingerprint"])
}

func TestSanitizeRRule(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want bool
	}{
		{"Simple", "FREQ=DAILY", true},
		{"WithParts", "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20250101T000000Z", true},
		{"Empty", "", false},
		{"MissingFreq", "BYDAY=MO;INTERVAL=2", false},
		{"BySetPos", "FREQ=MONTHLY;BYSETPOS=-1", false},
		{"RScale", "FREQ=YEARLY;RSCALE=GREGORIAN", false},
		{"Skip", "FREQ=YEARLY;SKIP=FORWARD", false},
		{"TooComplex", "FREQ=DAILY;A=1;B=2;C=3;D=4;E=5;F=6;G=7;H=8;I=9;J=10;K=11", false},
		{"LowercaseFreq", "freq=daily", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := sanitizeRRule(tt.rule)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestConvertStatus(t *testing.T) {
	assert.Equal(t, "tentative", convertStatus("TENTATIVE"))
	assert.Equal(t, "cancelled", convertStatus("cancelled"))
	assert.Equal(t, "confirmed", convertStatus("SOMETHING-ELSE"))
}
