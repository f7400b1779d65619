package slotgrid

import (
	"fmt"
	"testing"
	"time"
)

func TestGenerateSlots_AllRanges(t *testing.T) {
	for start := 0; start < 24; start++ {
		for end := start + 1; end <= 24; end++ {
			slots := GenerateSlots(WorkingHours{Start: start, End: end})
			if len(slots) != (end-start)*2 {
				t.Fatalf("%d-%d: expected %d slots, got %d", start, end, (end-start)*2, len(slots))
			}
			if slots[0] != fmt.Sprintf("%02d:00", start) {
				t.Errorf("%d-%d: first slot %s", start, end, slots[0])
			}
			if slots[len(slots)-1] != fmt.Sprintf("%02d:30", end-1) {
				t.Errorf("%d-%d: last slot %s", start, end, slots[len(slots)-1])
			}
			for i := 1; i < len(slots); i++ {
				if Minutes(slots[i]) <= Minutes(slots[i-1]) {
					t.Fatalf("%d-%d: slots not strictly increasing at %d", start, end, i)
				}
			}
		}
	}
}

func TestGenerateSlots_InvalidFallsBackToDefault(t *testing.T) {
	slots := GenerateSlots(WorkingHours{})
	if len(slots) != 24 {
		t.Fatalf("expected 24 default slots, got %d", len(slots))
	}
	if slots[0] != "07:00" || slots[23] != "18:30" {
		t.Errorf("unexpected default range %s..%s", slots[0], slots[23])
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"7:05", 425, false},
		{"24:00", 1440, false},
		{"24:30", 0, true},
		{"12:60", 0, true},
		{"1230", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAddMinutes_RoundTrip(t *testing.T) {
	for start := 0; start < 24*60; start += 15 {
		for end := start + 5; end < 24*60; end += 35 {
			s, e := FormatClock(start), FormatClock(end)
			d := MinutesBetween(s, e)
			if got := MinutesBetween(s, AddMinutes(s, d)); got != d {
				t.Fatalf("round trip %s-%s: got %d want %d", s, e, got, d)
			}
		}
	}
}

func TestAddMinutes(t *testing.T) {
	if got := AddMinutes("09:45", 30); got != "10:15" {
		t.Errorf("expected 10:15, got %s", got)
	}
	if got := AddMinutes("18:30", 90); got != "20:00" {
		t.Errorf("expected 20:00, got %s", got)
	}
}

func TestGeometry_RowOffset(t *testing.T) {
	g := DefaultGeometry
	wh := WorkingHours{Start: 7, End: 19}
	if got := g.RowOffset("07:00", wh); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := g.RowOffset("09:30", wh); got != 5*42 {
		t.Errorf("expected %v, got %v", 5*42, got)
	}
	if got := g.RowOffset("07:15", wh); got != 21 {
		t.Errorf("expected 21, got %v", got)
	}
}

func TestGeometry_DurationHeight(t *testing.T) {
	g := DefaultGeometry
	if got := g.DurationHeight("09:00", "10:00"); got != 84 {
		t.Errorf("expected 84, got %v", got)
	}
	if got := g.DurationHeight("09:00", "09:05"); got != g.MinBlockHeight {
		t.Errorf("expected clamp to %v, got %v", g.MinBlockHeight, got)
	}
}

func TestGeometry_SlotAtOffsetInvertsRowOffset(t *testing.T) {
	g := DefaultGeometry
	wh := WorkingHours{Start: 8, End: 17}
	for _, slot := range GenerateSlots(wh) {
		y := g.RowOffset(slot, wh) + g.RowHeight/2
		got, ok := g.SlotAtOffset(y, wh)
		if !ok || got != slot {
			t.Errorf("SlotAtOffset(%v) = %q,%v want %q", y, got, ok, slot)
		}
	}
	if _, ok := g.SlotAtOffset(-1, wh); ok {
		t.Error("expected miss above the grid")
	}
	if _, ok := g.SlotAtOffset(g.GridHeight(wh), wh); ok {
		t.Error("expected miss below the grid")
	}
}

func TestGeometry_NowLine(t *testing.T) {
	g := DefaultGeometry
	wh := WorkingHours{Start: 7, End: 19}
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	top, ok := g.NowLine(now, "2026-03-10", wh)
	if !ok {
		t.Fatal("expected now-line on today's board")
	}
	if top != 2.5*42 {
		t.Errorf("expected %v, got %v", 2.5*42, top)
	}
	if _, ok := g.NowLine(now, "2026-03-11", wh); ok {
		t.Error("now-line must not show on other days")
	}
	late := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	if _, ok := g.NowLine(late, "2026-03-10", wh); ok {
		t.Error("now-line must not show after working hours")
	}
}

func TestCombineAndDecompose(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	at, err := Combine("2026-05-04", "14:30", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	date, clock := Decompose(at.UTC(), loc)
	if date != "2026-05-04" || clock != "14:30" {
		t.Errorf("expected 2026-05-04 14:30, got %s %s", date, clock)
	}
	if _, err := Combine("2026-13-01", "10:00", loc); err == nil {
		t.Error("expected error for invalid date")
	}
}
