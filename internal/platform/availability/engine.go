// Package availability answers "is this dentist free" questions over an
// in-memory snapshot of bookings, absences and working hours, and finds the
// earliest bookable slot within a bounded horizon.
package availability

import (
	"time"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// HorizonDays bounds the forward search. The search never looks further.
const HorizonDays = 30

// Booking is the minimal view of an appointment the engine needs.
type Booking struct {
	DentistID string
	Date      string
	Start     string
	End       string
}

// Absence is a dentist vacation with inclusive date keys.
type Absence struct {
	DentistID string
	StartDate string
	EndDate   string
}

// Snapshot is everything a search reads. It is never mutated by the engine.
type Snapshot struct {
	Bookings     []Booking
	Absences     []Absence
	WorkingHours slotgrid.WorkingHours
}

// DentistRef identifies a dentist taking part in an aggregate search.
type DentistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FreeSlot is a search hit.
type FreeSlot struct {
	DentistID   string    `json:"dentist_id"`
	DentistName string    `json:"dentist_name,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	At          time.Time `json:"at"`
}

// SlotStatus classifies one grid row for one dentist and day.
type SlotStatus string

const (
	SlotFree     SlotStatus = "free"
	SlotBooked   SlotStatus = "booked"
	SlotVacation SlotStatus = "vacation"
	SlotPast     SlotStatus = "past"
)

// SlotState is one row of DayOccupancy.
type SlotState struct {
	Slot   string     `json:"slot"`
	Status SlotStatus `json:"status"`
}

// IsOnVacation reports whether dateKey falls inside any absence of the
// dentist. Date keys compare lexicographically.
func IsOnVacation(dentistID, dateKey string, absences []Absence) bool {
	for _, a := range absences {
		if a.DentistID == dentistID && a.StartDate <= dateKey && a.EndDate >= dateKey {
			return true
		}
	}
	return false
}

// IntervalsOverlap reports whether half-open [aStart,aEnd) and [bStart,bEnd)
// intersect. Touching endpoints do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return !(aEnd <= bStart || aStart >= bEnd)
}

// Overlaps reports whether b occupies any part of [slotStart,slotEnd)
// (minutes since midnight) for the given dentist and date.
func Overlaps(b Booking, dentistID, dateKey string, slotStart, slotEnd int) bool {
	if b.DentistID != dentistID || b.Date != dateKey {
		return false
	}
	return IntervalsOverlap(slotgrid.Minutes(b.Start), slotgrid.Minutes(b.End), slotStart, slotEnd)
}

// Engine runs searches against a clock. The zero value uses time.Now and
// time.Local.
type Engine struct {
	Now      func() time.Time
	Location *time.Location
}

// NewEngine returns an engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now, Location: time.Local}
}

func (e *Engine) now() time.Time {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	if e.Now == nil {
		return time.Now().In(loc)
	}
	return e.Now().In(loc)
}

// FindNextFree scans forward from today for the first half-hour slot of the
// dentist that is not in the past, not on a vacation day and not overlapped
// by a booking. It returns nil when the horizon is fully booked.
func (e *Engine) FindNextFree(dentistID string, snap Snapshot) *FreeSlot {
	now := e.now()
	today := slotgrid.StartOfDay(now)
	slots := slotgrid.GenerateSlots(snap.WorkingHours)
	own := bookingsOf(dentistID, snap.Bookings)

	for offset := 0; offset < HorizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		dateKey := slotgrid.DateKey(day)
		if IsOnVacation(dentistID, dateKey, snap.Absences) {
			continue
		}

		for _, slot := range slots {
			start := slotgrid.Minutes(slot)
			at := time.Date(day.Year(), day.Month(), day.Day(), start/60, start%60, 0, 0, day.Location())
			if at.Before(now) {
				continue
			}
			if occupied(own, dentistID, dateKey, start, start+slotgrid.SlotMinutes) {
				continue
			}
			return &FreeSlot{DentistID: dentistID, Date: dateKey, Time: slot, At: at}
		}
	}
	return nil
}

// EarliestFree runs FindNextFree for each dentist and keeps the earliest
// instant. On a tie the dentist listed first wins.
func (e *Engine) EarliestFree(dentists []DentistRef, snap Snapshot) *FreeSlot {
	var best *FreeSlot
	for _, d := range dentists {
		res := e.FindNextFree(d.ID, snap)
		if res == nil {
			continue
		}
		if best == nil || res.At.Before(best.At) {
			res.DentistName = d.Name
			best = res
		}
	}
	return best
}

// DayOccupancy classifies every slot of dateKey for the dentist.
func (e *Engine) DayOccupancy(dentistID, dateKey string, snap Snapshot) []SlotState {
	slots := slotgrid.GenerateSlots(snap.WorkingHours)
	out := make([]SlotState, 0, len(slots))
	vacation := IsOnVacation(dentistID, dateKey, snap.Absences)
	now := e.now()
	own := bookingsOf(dentistID, snap.Bookings)

	for _, slot := range slots {
		start := slotgrid.Minutes(slot)
		state := SlotState{Slot: slot, Status: SlotFree}
		switch {
		case vacation:
			state.Status = SlotVacation
		case occupied(own, dentistID, dateKey, start, start+slotgrid.SlotMinutes):
			state.Status = SlotBooked
		default:
			at, err := slotgrid.Combine(dateKey, slot, now.Location())
			if err == nil && at.Before(now) {
				state.Status = SlotPast
			}
		}
		out = append(out, state)
	}
	return out
}

func bookingsOf(dentistID string, all []Booking) []Booking {
	var own []Booking
	for _, b := range all {
		if b.DentistID == dentistID {
			own = append(own, b)
		}
	}
	return own
}

func occupied(bookings []Booking, dentistID, dateKey string, start, end int) bool {
	for _, b := range bookings {
		if Overlaps(b, dentistID, dateKey, start, end) {
			return true
		}
	}
	return false
}
