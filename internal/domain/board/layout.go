package board

import (
	"context"
	"errors"
	"time"

	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/availability"
	"github.com/dentboard/dentboard/internal/platform/dragdrop"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Query selects what the board shows. Empty DentistIDs means every active
// dentist; Search filters blocks by patient name or phone.
type Query struct {
	Date       string
	DentistIDs []string
	Search     string
}

type SlotRow struct {
	Time string  `json:"time"`
	Top  float64 `json:"top"`
}

type Block struct {
	AppointmentID string                `json:"appointment_id"`
	PatientName   string                `json:"patient_name"`
	Type          string                `json:"type"`
	TypeLabel     string                `json:"type_label"`
	Start         string                `json:"start"`
	End           string                `json:"end"`
	Top           float64               `json:"top"`
	Height        float64               `json:"height"`
	NHIF          bool                  `json:"nhif"`
	NoShow        bool                  `json:"no_show"`
	Attendance    scheduling.Attendance `json:"attendance"`
}

type Column struct {
	DentistID      string                   `json:"dentist_id"`
	Name           string                   `json:"name"`
	Specialty      string                   `json:"specialty"`
	SpecialtyLabel string                   `json:"specialty_label"`
	Color          string                   `json:"color"`
	OnVacation     bool                     `json:"on_vacation"`
	Slots          []availability.SlotState `json:"slots"`
	Blocks         []Block                  `json:"blocks"`
}

// View is one rendered day. NowLine is set only on today's board inside
// working hours; NextFree is omitted when nothing is booked or blocked.
type View struct {
	Date       string                 `json:"date"`
	Hours      slotgrid.WorkingHours  `json:"hours"`
	Geometry   slotgrid.Geometry      `json:"geometry"`
	GridHeight float64                `json:"grid_height"`
	Slots      []SlotRow              `json:"slots"`
	Columns    []Column               `json:"columns"`
	NowLine    *float64               `json:"now_line,omitempty"`
	NextFree   *availability.FreeSlot `json:"next_free,omitempty"`
}

// HitLayout returns the drop targets for a rendering that starts at top and
// gives every column the same width.
func (v *View) HitLayout(top, left, columnWidth float64) dragdrop.GridLayout {
	out := dragdrop.GridLayout{Top: top, Geometry: v.Geometry, Hours: v.Hours}
	for i, c := range v.Columns {
		l := left + float64(i)*columnWidth
		out.Columns = append(out.Columns, dragdrop.Column{
			DentistID:  c.DentistID,
			Left:       l,
			Right:      l + columnWidth,
			OnVacation: c.OnVacation,
		})
	}
	return out
}

// Builder computes board views from the live registry and clinic data.
type Builder struct {
	reg      *scheduling.Registry
	clinic   *clinic.Service
	source   *Source
	engine   *availability.Engine
	geometry slotgrid.Geometry
}

func NewBuilder(reg *scheduling.Registry, svc *clinic.Service, engine *availability.Engine) *Builder {
	return &Builder{
		reg:      reg,
		clinic:   svc,
		source:   NewSource(reg, svc),
		engine:   engine,
		geometry: slotgrid.DefaultGeometry,
	}
}

func (b *Builder) now() time.Time {
	loc := b.engine.Location
	if loc == nil {
		loc = time.Local
	}
	if b.engine.Now == nil {
		return time.Now().In(loc)
	}
	return b.engine.Now().In(loc)
}

// Today is the date key of the engine's clock.
func (b *Builder) Today() string {
	return slotgrid.DateKey(b.now())
}

func (b *Builder) Build(ctx context.Context, q Query) (*View, error) {
	if q.Date == "" {
		q.Date = b.Today()
	} else if _, err := time.Parse(slotgrid.DateLayout, q.Date); err != nil {
		return nil, ErrInvalidDate
	}

	snap, err := b.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	dentists, err := b.selectDentists(ctx, q.DentistIDs)
	if err != nil {
		return nil, err
	}
	specialties, _ := b.clinic.Catalog(ctx, clinic.CatalogSpecialties)
	types, _ := b.clinic.Catalog(ctx, clinic.CatalogAppointmentTypes)

	wh := snap.WorkingHours
	v := &View{
		Date:       q.Date,
		Hours:      wh,
		Geometry:   b.geometry,
		GridHeight: b.geometry.GridHeight(wh),
		Columns:    []Column{},
	}
	for _, slot := range slotgrid.GenerateSlots(wh) {
		v.Slots = append(v.Slots, SlotRow{Time: slot, Top: b.geometry.RowOffset(slot, wh)})
	}

	byDentist := make(map[string][]Block)
	for _, a := range b.reg.List(scheduling.Filter{Date: q.Date, Query: q.Search}) {
		byDentist[a.DentistID] = append(byDentist[a.DentistID], Block{
			AppointmentID: a.ID,
			PatientName:   b.reg.PatientLabel(a),
			Type:          a.Type,
			TypeLabel:     clinic.Label(types, a.Type),
			Start:         a.Start,
			End:           a.End,
			Top:           b.geometry.RowOffset(a.Start, wh),
			Height:        b.geometry.DurationHeight(a.Start, a.End),
			NHIF:          a.Insurance == scheduling.InsuranceNHIF,
			NoShow:        a.Attendance == scheduling.AttendanceNoShow,
			Attendance:    a.Attendance,
		})
	}

	refs := make([]availability.DentistRef, 0, len(dentists))
	for _, d := range dentists {
		blocks := byDentist[d.ID]
		if blocks == nil {
			blocks = []Block{}
		}
		v.Columns = append(v.Columns, Column{
			DentistID:      d.ID,
			Name:           d.Name,
			Specialty:      d.Specialty,
			SpecialtyLabel: clinic.Label(specialties, d.Specialty),
			Color:          d.Color,
			OnVacation:     availability.IsOnVacation(d.ID, q.Date, snap.Absences),
			Slots:          b.engine.DayOccupancy(d.ID, q.Date, snap),
			Blocks:         blocks,
		})
		refs = append(refs, availability.DentistRef{ID: d.ID, Name: d.Name})
	}

	if y, ok := b.geometry.NowLine(b.now(), q.Date, wh); ok {
		v.NowLine = &y
	}
	if len(snap.Bookings) > 0 || len(snap.Absences) > 0 {
		v.NextFree = b.engine.EarliestFree(refs, snap)
	}
	return v, nil
}

func (b *Builder) selectDentists(ctx context.Context, ids []string) ([]*clinic.Dentist, error) {
	active, err := b.clinic.Dentists(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return active, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*clinic.Dentist
	for _, d := range active {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}
