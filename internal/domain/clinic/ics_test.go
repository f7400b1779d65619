package clinic

import (
	"context"
	"strings"
	"testing"
	"time"
)

const vacationFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//dentboard//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:summer@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250610\r\n" +
	"DTEND;VALUE=DATE:20250613\r\n" +
	"SUMMARY:Summer leave\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:conference@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250703T080000Z\r\n" +
	"DTEND:20250703T160000Z\r\n" +
	"SUMMARY: Conference \r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:old@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240101\r\n" +
	"DTEND;VALUE=DATE:20240102\r\n" +
	"SUMMARY:Last year\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

// brokenFeed has one event without UID or DTSTAMP between two valid ones.
const brokenFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//dentboard//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:spring@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250414\r\n" +
	"DTEND;VALUE=DATE:20250416\r\n" +
	"SUMMARY:Spring leave\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;VALUE=DATE:20250501\r\n" +
	"DTEND;VALUE=DATE:20250502\r\n" +
	"SUMMARY:No uid\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:autumn@example.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20251020\r\n" +
	"DTEND;VALUE=DATE:20251021\r\n" +
	"SUMMARY:Autumn leave\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func feedWindow() (time.Time, time.Time) {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
}

func TestParseVacationsICS(t *testing.T) {
	from, to := feedWindow()
	got, err := ParseVacationsICS(strings.NewReader(vacationFeed), "d-1", from, to)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vacations inside the window, got %+v", got)
	}

	byNote := map[string]Vacation{}
	for _, v := range got {
		byNote[v.Note] = v
	}
	summer, ok := byNote["Summer leave"]
	if !ok {
		t.Fatalf("missing summer leave in %+v", got)
	}
	// The exclusive all-day end (13th) leaves the 12th as the last day.
	if summer.StartDate != "2025-06-10" || summer.EndDate != "2025-06-12" || summer.DentistID != "d-1" {
		t.Errorf("unexpected summer vacation %+v", summer)
	}
	conf, ok := byNote["Conference"]
	if !ok {
		t.Fatalf("missing trimmed conference note in %+v", got)
	}
	if conf.StartDate != "2025-07-03" || conf.EndDate != "2025-07-03" {
		t.Errorf("timed event should cover one day, got %+v", conf)
	}
}

func TestParseVacationsICS_SkipsMalformedEvent(t *testing.T) {
	from, to := feedWindow()
	got, err := ParseVacationsICS(strings.NewReader(brokenFeed), "d-1", from, to)
	if err != nil {
		t.Fatalf("a malformed event must not fail the feed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the 2 valid vacations, got %+v", got)
	}
	notes := map[string]bool{}
	for _, v := range got {
		notes[v.Note] = true
	}
	if !notes["Spring leave"] || !notes["Autumn leave"] || notes["No uid"] {
		t.Errorf("unexpected vacations %+v", got)
	}
}

func TestImportVacations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	d := f.addDentist(t, "Dr. A")
	from, to := feedWindow()

	n, err := f.svc.ImportVacations(ctx, d.ID, strings.NewReader(vacationFeed), from, to)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}
	stored, _ := f.svc.Vacations(ctx, d.ID)
	if len(stored) != 2 {
		t.Errorf("expected 2 stored vacations, got %d", len(stored))
	}

	if _, err := f.svc.ImportVacations(ctx, "missing", strings.NewReader(vacationFeed), from, to); !IsNotFound(err) {
		t.Errorf("expected dentist not found, got %v", err)
	}
}
