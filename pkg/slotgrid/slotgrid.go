// Package slotgrid maps clinic working hours to the fixed half-hour rows of
// the scheduling board and converts wall-clock times into vertical offsets.
// Every function here is pure; callers pass the clock and location in.
package slotgrid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotMinutes is the row unit of the board.
const SlotMinutes = 30

// DateLayout is the calendar-date key format used across the board.
const DateLayout = "2006-01-02"

// WorkingHours is the clinic-wide visible range, in whole hours.
type WorkingHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DefaultWorkingHours is used whenever no valid clinic setting exists.
var DefaultWorkingHours = WorkingHours{Start: 7, End: 19}

// Valid reports whether the range is non-empty and inside a single day.
func (w WorkingHours) Valid() bool {
	return w.Start >= 0 && w.End <= 24 && w.Start < w.End
}

// OrDefault returns w, or DefaultWorkingHours when w is not valid.
func (w WorkingHours) OrDefault() WorkingHours {
	if !w.Valid() {
		return DefaultWorkingHours
	}
	return w
}

// GenerateSlots returns every HH:MM label from Start (inclusive) to End
// (exclusive) at a SlotMinutes stride.
func GenerateSlots(wh WorkingHours) []string {
	wh = wh.OrDefault()
	slots := make([]string, 0, (wh.End-wh.Start)*60/SlotMinutes)
	for h := wh.Start; h < wh.End; h++ {
		for m := 0; m < 60; m += SlotMinutes {
			slots = append(slots, FormatClock(h*60+m))
		}
	}
	return slots
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// Minutes is ParseClock for already-validated input; malformed strings
// count as midnight.
func Minutes(s string) int {
	m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// AddMinutes shifts an HH:MM time. Clinic hours never cross midnight so no
// day wrap-around is applied.
func AddMinutes(t string, minutes int) string {
	return FormatClock(Minutes(t) + minutes)
}

// MinutesBetween returns end minus start in minutes.
func MinutesBetween(start, end string) int {
	return Minutes(end) - Minutes(start)
}

// DateKey formats t as YYYY-MM-DD in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as local midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// Combine builds the instant for a date key and an HH:MM time in loc.
func Combine(dateKey, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDateKey(dateKey, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc), nil
}

// Decompose splits an instant into its local date key and HH:MM time.
func Decompose(t time.Time, loc *time.Location) (string, string) {
	local := t.In(loc)
	return DateKey(local), local.Format("15:04")
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
