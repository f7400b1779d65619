package clinic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/platform/availability"
	"github.com/dentboard/dentboard/internal/platform/websocket"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

const (
	EventDentistChanged  = "dentist.changed"
	EventVacationChanged = "vacation.changed"
	EventSettingsChanged = "settings.changed"
)

// AppointmentCounter and PatientCounter feed the admin stats.
type AppointmentCounter interface {
	CountOn(dateKey string) int
}

type PatientCounter interface {
	Count() int
}

type Service struct {
	dentists  DentistRepository
	vacations VacationRepository
	settings  SettingsRepository
	catalogs  CatalogRepository
	audit     auditevent.Sink
	events    websocket.EventPublisher
	logger    zerolog.Logger
}

type Option func(*Service)

func WithEvents(p websocket.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(dentists DentistRepository, vacations VacationRepository, settings SettingsRepository, catalogs CatalogRepository, audit auditevent.Sink, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		dentists:  dentists,
		vacations: vacations,
		settings:  settings,
		catalogs:  catalogs,
		audit:     audit,
		logger:    logger.With().Str("component", "clinic").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = auditevent.NopSink{}
	}
	return s
}

// -- Dentists --

// Dentists returns the roster in creation order.
func (s *Service) Dentists(ctx context.Context, includeInactive bool) ([]*Dentist, error) {
	all, err := s.dentists.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dentists: %w", err)
	}
	if includeInactive {
		return all, nil
	}
	out := all[:0]
	for _, d := range all {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) Dentist(ctx context.Context, id string) (*Dentist, error) {
	all, err := s.dentists.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dentists: %w", err)
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, ErrDentistNotFound
}

// AddDentist defaults the specialty and picks the next palette color when
// none is given.
func (s *Service) AddDentist(ctx context.Context, d Dentist) (*Dentist, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, ErrNameRequired
	}
	if d.Specialty == "" {
		d.Specialty = DefaultSpecialty
	}
	if d.Color == "" {
		all, err := s.dentists.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dentists: %w", err)
		}
		d.Color = DefaultDentistColors[len(all)%len(DefaultDentistColors)]
	}
	d.ID = ""
	d.Active = true
	if err := s.dentists.Create(ctx, &d); err != nil {
		return nil, fmt.Errorf("create dentist: %w", err)
	}
	s.audit.Append(ctx, auditevent.NewEntry(auditevent.DentistAdded, auditevent.EntityDentist, d.ID, map[string]string{"name": d.Name}))
	s.publish(ctx, EventDentistChanged, d.ID, d)
	return &d, nil
}

func (s *Service) UpdateDentist(ctx context.Context, id string, p DentistPatch) (*Dentist, error) {
	d, err := s.Dentist(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		d.Name = name
	}
	if p.Specialty != nil {
		d.Specialty = *p.Specialty
	}
	if p.Color != nil {
		d.Color = *p.Color
	}
	if err := s.dentists.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update dentist: %w", err)
	}
	s.publish(ctx, EventDentistChanged, d.ID, d)
	return d, nil
}

// RemoveDentist takes the dentist off the active roster.
func (s *Service) RemoveDentist(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := s.dentists.Deactivate(ctx, id); err != nil {
		return err
	}
	s.audit.Append(ctx, auditevent.NewEntry(auditevent.DentistDeleted, auditevent.EntityDentist, id, nil))
	s.publish(ctx, EventDentistChanged, id, map[string]string{"id": id, "status": "removed"})
	return nil
}

// DentistRefs returns the active dentists among ids in roster order; an
// empty ids means all of them.
func (s *Service) DentistRefs(ctx context.Context, ids []string) ([]availability.DentistRef, error) {
	active, err := s.Dentists(ctx, false)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []availability.DentistRef
	for _, d := range active {
		if len(ids) > 0 && !want[d.ID] {
			continue
		}
		out = append(out, availability.DentistRef{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// -- Vacations --

// Vacations lists all vacations, or one dentist's when dentistID is set.
func (s *Service) Vacations(ctx context.Context, dentistID string) ([]*Vacation, error) {
	all, err := s.vacations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vacations: %w", err)
	}
	if dentistID == "" {
		return all, nil
	}
	var out []*Vacation
	for _, v := range all {
		if v.DentistID == dentistID {
			out = append(out, v)
		}
	}
	return out, nil
}

func validDateKey(s string) bool {
	_, err := time.Parse(slotgrid.DateLayout, s)
	return err == nil
}

// AddVacation records an inclusive range. Overlapping ranges are kept as is.
func (s *Service) AddVacation(ctx context.Context, v Vacation) (*Vacation, error) {
	if !validDateKey(v.StartDate) || !validDateKey(v.EndDate) {
		return nil, ErrInvalidDate
	}
	if v.StartDate > v.EndDate {
		return nil, ErrInvalidRange
	}
	if _, err := s.Dentist(ctx, v.DentistID); err != nil {
		return nil, err
	}
	v.ID = ""
	v.Note = strings.TrimSpace(v.Note)
	if err := s.vacations.Create(ctx, &v); err != nil {
		return nil, fmt.Errorf("create vacation: %w", err)
	}
	s.audit.Append(ctx, auditevent.NewEntry(auditevent.VacationAdded, auditevent.EntityVacation, v.ID, map[string]string{
		"dentist_id": v.DentistID,
		"start_date": v.StartDate,
		"end_date":   v.EndDate,
	}))
	s.publish(ctx, EventVacationChanged, v.ID, v)
	return &v, nil
}

func (s *Service) DeleteVacation(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := s.vacations.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Append(ctx, auditevent.NewEntry(auditevent.VacationDeleted, auditevent.EntityVacation, id, nil))
	s.publish(ctx, EventVacationChanged, id, map[string]string{"id": id, "status": "deleted"})
	return nil
}

// Absences is the vacation view the availability engine reads.
func (s *Service) Absences(ctx context.Context) ([]availability.Absence, error) {
	all, err := s.vacations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vacations: %w", err)
	}
	out := make([]availability.Absence, len(all))
	for i, v := range all {
		out[i] = availability.Absence{DentistID: v.DentistID, StartDate: v.StartDate, EndDate: v.EndDate}
	}
	return out, nil
}

// -- Settings --

// WorkingHours reads the stored hours. Missing, unparseable or invalid
// values fall back to 7-19; a read failure is logged and does the same.
func (s *Service) WorkingHours(ctx context.Context) slotgrid.WorkingHours {
	values, err := s.settings.All(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read working hours; using defaults")
		return slotgrid.DefaultWorkingHours
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(values[SettingHoursStart]))
	end, err2 := strconv.Atoi(strings.TrimSpace(values[SettingHoursEnd]))
	if err1 != nil || err2 != nil {
		return slotgrid.DefaultWorkingHours
	}
	wh := slotgrid.WorkingHours{Start: start, End: end}
	if !wh.Valid() {
		return slotgrid.DefaultWorkingHours
	}
	return wh
}

func (s *Service) SaveWorkingHours(ctx context.Context, wh slotgrid.WorkingHours) error {
	if !wh.Valid() {
		return ErrInvalidHours
	}
	err := s.settings.Upsert(ctx, map[string]string{
		SettingHoursStart: strconv.Itoa(wh.Start),
		SettingHoursEnd:   strconv.Itoa(wh.End),
	})
	if err != nil {
		return fmt.Errorf("save working hours: %w", err)
	}
	s.publish(ctx, EventSettingsChanged, "working_hours", wh)
	return nil
}

// -- Catalogs --

// Catalog returns the stored entries, or the built-in defaults when the
// store has none or cannot be read.
func (s *Service) Catalog(ctx context.Context, c Catalog) ([]CatalogEntry, error) {
	if !c.Valid() {
		return nil, ErrUnknownCatalog
	}
	entries, err := s.catalogs.List(ctx, c)
	if err != nil {
		s.logger.Warn().Err(err).Str("catalog", string(c)).Msg("read catalog; using defaults")
		return defaultsFor(c), nil
	}
	if len(entries) == 0 {
		return defaultsFor(c), nil
	}
	return entries, nil
}

func (s *Service) AddCatalogEntry(ctx context.Context, c Catalog, key, label string) (*CatalogEntry, error) {
	if !c.Valid() {
		return nil, ErrUnknownCatalog
	}
	e := CatalogEntry{Key: strings.TrimSpace(key), Label: strings.TrimSpace(label)}
	if e.Key == "" || e.Label == "" {
		return nil, ErrKeyRequired
	}
	if err := s.catalogs.Add(ctx, c, &e); err != nil {
		return nil, fmt.Errorf("add %s entry: %w", c, err)
	}
	return &e, nil
}

func (s *Service) DeleteCatalogEntry(ctx context.Context, c Catalog, id string) error {
	if !c.Valid() {
		return ErrUnknownCatalog
	}
	return s.catalogs.Delete(ctx, c, id)
}

// -- Stats --

func (s *Service) Stats(ctx context.Context, dateKey string, appts AppointmentCounter, patients PatientCounter) (Stats, error) {
	active, err := s.Dentists(ctx, false)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{DentistsCount: len(active)}
	if appts != nil {
		st.AppointmentsToday = appts.CountOn(dateKey)
	}
	if patients != nil {
		st.PatientsCount = patients.Count()
	}
	return st, nil
}

func (s *Service) publish(ctx context.Context, eventType, id string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, websocket.NewEvent(eventType, "clinic", id, data)); err != nil {
		s.logger.Debug().Err(err).Str("event", eventType).Msg("publish clinic event")
	}
}
