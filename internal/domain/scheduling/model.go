package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// Insurance is the payment mode of a visit.
type Insurance string

const (
	InsurancePrivate Insurance = "private"
	InsuranceNHIF    Insurance = "nhif"
)

func (i Insurance) Valid() bool {
	return i == InsurancePrivate || i == InsuranceNHIF
}

// Attendance records whether the patient came. Only pending is allowed
// before the appointment has ended.
type Attendance string

const (
	AttendancePending Attendance = "pending"
	AttendanceShowed  Attendance = "showed"
	AttendanceNoShow  Attendance = "no_show"
)

func (a Attendance) Valid() bool {
	switch a {
	case AttendancePending, AttendanceShowed, AttendanceNoShow:
		return true
	}
	return false
}

const (
	DefaultType            = "Checkup"
	DefaultDurationMinutes = 30
	// PatientFallbackName is shown when an appointment has no resolvable patient.
	PatientFallbackName = "Пациент"

	localIDPrefix = "local-"
)

var (
	ErrNotFound            = errors.New("appointment not found")
	ErrNotConfirmed        = errors.New("deletion requires explicit confirmation")
	ErrAttendanceBeforeEnd = errors.New("attendance can only be recorded after the appointment has ended")
	ErrInvalidInput        = errors.New("invalid appointment")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Appointment is the board's view of one booking. Date is a local date key,
// Start and End are same-day HH:MM clocks.
type Appointment struct {
	ID          string     `json:"id"`
	DentistID   string     `json:"dentist_id"`
	PatientID   string     `json:"patient_id,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
	Date        string     `json:"date"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Type        string     `json:"type"`
	Insurance   Insurance  `json:"insurance"`
	Attendance  Attendance `json:"attendance"`
	Notes       string     `json:"notes,omitempty"`
}

// Local reports whether the appointment still carries a provisional id.
func (a *Appointment) Local() bool {
	return isLocalID(a.ID)
}

func (a *Appointment) DurationMinutes() int {
	return slotgrid.MinutesBetween(a.Start, a.End)
}

// EndsAt is the end instant in loc.
func (a *Appointment) EndsAt(loc *time.Location) (time.Time, error) {
	return slotgrid.Combine(a.Date, a.End, loc)
}

func isLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// validateTimes checks date and clocks: end after start, same day.
func validateTimes(date, start, end string) error {
	if _, err := time.Parse(slotgrid.DateLayout, date); err != nil {
		return invalid("date %q is not YYYY-MM-DD", date)
	}
	s, err := slotgrid.ParseClock(start)
	if err != nil {
		return invalid("start: %v", err)
	}
	e, err := slotgrid.ParseClock(end)
	if err != nil {
		return invalid("end: %v", err)
	}
	if e <= s {
		return invalid("end %s must be after start %s", end, start)
	}
	if e >= 24*60 {
		return invalid("appointment must end before midnight")
	}
	return nil
}

// Row is an appointment as the store of record keeps it. The appointment
// type lives in the status column.
type Row struct {
	ID          string
	DentistID   string
	PatientID   *string
	PatientName string
	StartTime   time.Time
	EndTime     time.Time
	Status      string
	Insurance   *string
	Attendance  *string
	Notes       *string
}

// RowPatch lists the columns to change. Nil fields are left alone.
type RowPatch struct {
	DentistID   *string
	PatientID   *string
	PatientName *string
	StartTime   *time.Time
	EndTime     *time.Time
	Status      *string
	Insurance   *string
	Attendance  *string
	Notes       *string
}

func (p RowPatch) Empty() bool {
	return p == RowPatch{}
}

// FromRow decomposes store timestamps in loc. It reports false for rows
// whose timestamps cannot be placed on the grid.
func FromRow(r Row, loc *time.Location) (*Appointment, bool) {
	if r.StartTime.IsZero() || r.EndTime.IsZero() || !r.EndTime.After(r.StartTime) {
		return nil, false
	}
	date, start := slotgrid.Decompose(r.StartTime, loc)
	endDate, end := slotgrid.Decompose(r.EndTime, loc)
	if endDate != date {
		return nil, false
	}

	a := &Appointment{
		ID:          r.ID,
		DentistID:   r.DentistID,
		PatientName: r.PatientName,
		Date:        date,
		Start:       start,
		End:         end,
		Type:        r.Status,
		Insurance:   InsurancePrivate,
		Attendance:  AttendancePending,
	}
	if r.PatientID != nil {
		a.PatientID = *r.PatientID
	}
	if a.Type == "" {
		a.Type = DefaultType
	}
	if r.Insurance != nil && Insurance(*r.Insurance).Valid() {
		a.Insurance = Insurance(*r.Insurance)
	}
	if r.Attendance != nil && Attendance(*r.Attendance).Valid() {
		a.Attendance = Attendance(*r.Attendance)
	}
	if r.Notes != nil {
		a.Notes = *r.Notes
	}
	return a, true
}

// ToRow combines the date and clocks into timestamps in loc.
func (a *Appointment) ToRow(loc *time.Location) (Row, error) {
	start, err := slotgrid.Combine(a.Date, a.Start, loc)
	if err != nil {
		return Row{}, err
	}
	end, err := slotgrid.Combine(a.Date, a.End, loc)
	if err != nil {
		return Row{}, err
	}
	insurance := string(a.Insurance)
	attendance := string(a.Attendance)
	r := Row{
		ID:          a.ID,
		DentistID:   a.DentistID,
		PatientName: a.PatientName,
		StartTime:   start,
		EndTime:     end,
		Status:      a.Type,
		Insurance:   &insurance,
		Attendance:  &attendance,
	}
	if a.PatientID != "" {
		pid := a.PatientID
		r.PatientID = &pid
	}
	if a.Notes != "" {
		notes := a.Notes
		r.Notes = &notes
	}
	return r, nil
}

// Patch is a partial update. A nil field is not provided; a pointer to an
// empty string clears the field.
type Patch struct {
	DentistID   *string     `json:"dentist_id,omitempty"`
	PatientID   *string     `json:"patient_id,omitempty"`
	PatientName *string     `json:"patient_name,omitempty"`
	Date        *string     `json:"date,omitempty"`
	Start       *string     `json:"start,omitempty"`
	End         *string     `json:"end,omitempty"`
	Type        *string     `json:"type,omitempty"`
	Insurance   *Insurance  `json:"insurance,omitempty"`
	Attendance  *Attendance `json:"attendance,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
}

func (p Patch) touchesTime() bool {
	return p.Date != nil || p.Start != nil || p.End != nil
}

// apply returns a copy of a with the patch applied.
func (p Patch) apply(a Appointment) Appointment {
	if p.DentistID != nil {
		a.DentistID = *p.DentistID
	}
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Start != nil {
		a.Start = *p.Start
	}
	if p.End != nil {
		a.End = *p.End
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Insurance != nil {
		a.Insurance = *p.Insurance
	}
	if p.Attendance != nil {
		a.Attendance = *p.Attendance
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return a
}
