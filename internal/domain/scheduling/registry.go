package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/platform/availability"
	"github.com/dentboard/dentboard/internal/platform/db"
	"github.com/dentboard/dentboard/internal/platform/syncq"
	"github.com/dentboard/dentboard/internal/platform/websocket"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// Board events published on every local change.
const (
	EventCreated   = "appointment.created"
	EventUpdated   = "appointment.updated"
	EventMoved     = "appointment.moved"
	EventDeleted   = "appointment.deleted"
	EventIDChanged = "appointment.id_changed"
)

// PatientInfo is what the registry needs to know about a patient.
type PatientInfo struct {
	ID    string
	Name  string
	Phone string
}

// PatientResolver finds patients by id or, for legacy rows without one, by
// normalized name. Both paths are kept.
type PatientResolver interface {
	ResolveByKey(id string) (PatientInfo, bool)
	ResolveByNormalizedName(name string) (PatientInfo, bool)
}

// Confirmation guards destructive calls.
type Confirmation bool

const Confirmed Confirmation = true

// LoadError reports a failed initial fetch. MissingSchema distinguishes a
// store that was never migrated from any other failure.
type LoadError struct {
	MissingSchema bool
	Err           error
}

func (e *LoadError) Error() string {
	if e.MissingSchema {
		return "appointments table is missing, run migrations: " + e.Err.Error()
	}
	return "load appointments: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

type CreateInput struct {
	DentistID       string    `json:"dentist_id"`
	PatientID       string    `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	Date            string    `json:"date"`
	Start           string    `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Insurance       Insurance `json:"insurance"`
	Notes           string    `json:"notes"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Date       string
	DentistIDs []string
	Query      string
}

// Registry owns the in-memory appointment collection. Every mutation applies
// locally first and then queues the remote write; a failed write is logged
// and the local state stands. Without a store the registry is local-only
// and emits no audit entries.
type Registry struct {
	mu      sync.RWMutex
	items   []*Appointment
	aliases map[string]string
	loadErr error

	store    AppointmentStore
	patients PatientResolver
	audit    auditevent.Sink
	events   websocket.EventPublisher
	queue    *syncq.Queue
	logger   zerolog.Logger
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.loc = loc }
}

func WithEvents(p websocket.EventPublisher) Option {
	return func(r *Registry) { r.events = p }
}

func NewRegistry(store AppointmentStore, patients PatientResolver, audit auditevent.Sink, queue *syncq.Queue, logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		aliases:  make(map[string]string),
		store:    store,
		patients: patients,
		audit:    audit,
		queue:    queue,
		logger:   logger.With().Str("component", "registry").Logger(),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.audit == nil {
		r.audit = auditevent.NopSink{}
	}
	return r
}

// Local reports whether the registry runs without a store of record.
func (r *Registry) Local() bool {
	return r.store == nil
}

// Load replaces the collection with the store's rows. On failure the
// collection is emptied and a *LoadError is returned.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	rows, err := r.store.List(ctx)
	if err != nil {
		lerr := &LoadError{MissingSchema: db.IsMissingSchema(err), Err: err}
		r.mu.Lock()
		r.items = nil
		r.aliases = make(map[string]string)
		r.loadErr = lerr
		r.mu.Unlock()
		return lerr
	}

	items := make([]*Appointment, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		a, ok := FromRow(row, r.loc)
		if !ok {
			dropped++
			continue
		}
		items = append(items, a)
	}
	if dropped > 0 {
		r.logger.Warn().Int("dropped", dropped).Msg("skipped appointments with unusable timestamps")
	}

	r.mu.Lock()
	r.items = items
	r.aliases = make(map[string]string)
	r.loadErr = nil
	r.mu.Unlock()
	return nil
}

// LoadErr returns the error of the last Load, if it failed.
func (r *Registry) LoadErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// Create appends a new appointment under a provisional local id and queues
// the insert. Once the store assigns an id the local one is replaced; Get
// keeps resolving the old id.
func (r *Registry) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.DentistID == "" {
		return nil, invalid("dentist_id is required")
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	if duration < 0 {
		return nil, invalid("duration must be positive")
	}
	if _, err := slotgrid.ParseClock(in.Start); err != nil {
		return nil, invalid("start: %v", err)
	}
	end := slotgrid.AddMinutes(in.Start, duration)
	if slotgrid.Minutes(in.Start)+duration >= 24*60 {
		return nil, invalid("appointment must end before midnight")
	}
	if err := validateTimes(in.Date, in.Start, end); err != nil {
		return nil, err
	}
	if in.Insurance == "" {
		in.Insurance = InsurancePrivate
	}
	if !in.Insurance.Valid() {
		return nil, invalid("insurance %q", in.Insurance)
	}
	if in.Type == "" {
		in.Type = DefaultType
	}

	name := in.PatientName
	if in.PatientID != "" && r.patients != nil {
		if p, ok := r.patients.ResolveByKey(in.PatientID); ok {
			name = p.Name
		}
	}

	a := &Appointment{
		ID:          localIDPrefix + uuid.NewString(),
		DentistID:   in.DentistID,
		PatientID:   in.PatientID,
		PatientName: name,
		Date:        in.Date,
		Start:       in.Start,
		End:         end,
		Type:        in.Type,
		Insurance:   in.Insurance,
		Attendance:  AttendancePending,
		Notes:       in.Notes,
	}

	r.mu.Lock()
	r.items = append(r.items, a)
	out := *a
	r.mu.Unlock()

	r.publish(ctx, EventCreated, out.ID, out)

	if r.store != nil {
		row, err := out.ToRow(r.loc)
		if err != nil {
			r.logger.Error().Err(err).Str("appointment_id", out.ID).Msg("persist new appointment: build row")
			return &out, nil
		}
		localID := out.ID
		r.enqueue("insert appointment", func(ctx context.Context) error {
			stored, err := r.store.Insert(ctx, row)
			if err != nil {
				r.logger.Error().Err(err).Str("appointment_id", localID).Msg("persist new appointment")
				return nil
			}
			r.replaceID(localID, stored.ID)
			r.publish(ctx, EventIDChanged, stored.ID, map[string]string{"old_id": localID, "new_id": stored.ID})
			r.audit.Append(ctx, auditevent.NewEntry(auditevent.AppointmentCreated, auditevent.EntityAppointment, stored.ID, map[string]string{
				"patient_name": out.PatientName,
				"dentist_id":   out.DentistID,
				"start":        out.Date + " " + out.Start,
			}))
			return nil
		})
	}
	return &out, nil
}

// Move reassigns dentist and start, keeping the date and the duration.
func (r *Registry) Move(ctx context.Context, id, dentistID, start string) error {
	if dentistID == "" {
		return invalid("dentist_id is required")
	}
	startMin, err := slotgrid.ParseClock(start)
	if err != nil {
		return invalid("start: %v", err)
	}

	r.mu.Lock()
	a := r.find(id)
	if a == nil {
		r.mu.Unlock()
		return ErrNotFound
	}
	duration := a.DurationMinutes()
	if startMin+duration >= 24*60 {
		r.mu.Unlock()
		return invalid("appointment must end before midnight")
	}
	a.DentistID = dentistID
	a.Start = start
	a.End = slotgrid.AddMinutes(start, duration)
	out := *a
	r.mu.Unlock()

	r.publish(ctx, EventMoved, out.ID, out)

	if r.store != nil {
		row, err := out.ToRow(r.loc)
		if err != nil {
			r.logger.Error().Err(err).Str("appointment_id", out.ID).Msg("persist appointment move: build row")
			return nil
		}
		patch := RowPatch{DentistID: &row.DentistID, StartTime: &row.StartTime, EndTime: &row.EndTime}
		r.persist(out.ID, "move appointment", func(ctx context.Context, storeID string) error {
			if err := r.store.Update(ctx, storeID, patch); err != nil {
				return err
			}
			r.audit.Append(ctx, auditevent.NewEntry(auditevent.AppointmentMoved, auditevent.EntityAppointment, storeID, map[string]string{
				"dentist_id": out.DentistID,
				"start":      out.Date + " " + out.Start,
				"end":        out.End,
			}))
			return nil
		})
	}
	return nil
}

// Update applies a partial change. Attendance other than pending is refused
// until the appointment's end is in the past.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (*Appointment, error) {
	if p.Insurance != nil && !p.Insurance.Valid() {
		return nil, invalid("insurance %q", *p.Insurance)
	}
	if p.Attendance != nil && !p.Attendance.Valid() {
		return nil, invalid("attendance %q", *p.Attendance)
	}
	if p.DentistID != nil && *p.DentistID == "" {
		return nil, invalid("dentist_id cannot be cleared")
	}

	r.mu.Lock()
	a := r.find(id)
	if a == nil {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	next := p.apply(*a)
	if p.touchesTime() {
		if err := validateTimes(next.Date, next.Start, next.End); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	if p.Attendance != nil && *p.Attendance != AttendancePending {
		end, err := next.EndsAt(r.loc)
		if err != nil || !end.Before(r.now()) {
			r.mu.Unlock()
			return nil, ErrAttendanceBeforeEnd
		}
	}
	if p.PatientID != nil && p.PatientName == nil && next.PatientID != "" && r.patients != nil {
		if info, ok := r.patients.ResolveByKey(next.PatientID); ok {
			next.PatientName = info.Name
		}
	}
	if next.Type == "" {
		next.Type = DefaultType
	}
	*a = next
	out := next
	r.mu.Unlock()

	r.publish(ctx, EventUpdated, out.ID, out)

	if r.store != nil {
		patch, err := r.rowPatch(p, out)
		if err != nil {
			r.logger.Error().Err(err).Str("appointment_id", out.ID).Msg("persist appointment update: build patch")
			return &out, nil
		}
		if patch.Empty() {
			return &out, nil
		}
		r.persist(out.ID, "update appointment", func(ctx context.Context, storeID string) error {
			if err := r.store.Update(ctx, storeID, patch); err != nil {
				return err
			}
			r.audit.Append(ctx, auditevent.NewEntry(auditevent.AppointmentUpdated, auditevent.EntityAppointment, storeID, p))
			return nil
		})
	}
	return &out, nil
}

func (r *Registry) rowPatch(p Patch, a Appointment) (RowPatch, error) {
	var rp RowPatch
	if p.touchesTime() {
		row, err := a.ToRow(r.loc)
		if err != nil {
			return rp, err
		}
		rp.StartTime = &row.StartTime
		rp.EndTime = &row.EndTime
	}
	rp.DentistID = p.DentistID
	rp.PatientID = p.PatientID
	if p.PatientName != nil || p.PatientID != nil {
		name := a.PatientName
		rp.PatientName = &name
	}
	if p.Type != nil {
		t := a.Type
		rp.Status = &t
	}
	if p.Insurance != nil {
		s := string(*p.Insurance)
		rp.Insurance = &s
	}
	if p.Attendance != nil {
		s := string(*p.Attendance)
		rp.Attendance = &s
	}
	rp.Notes = p.Notes
	return rp, nil
}

// Remove deletes the appointment. Without confirmation nothing happens.
func (r *Registry) Remove(ctx context.Context, id string, confirm Confirmation) error {
	if !confirm {
		return ErrNotConfirmed
	}

	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	out := *r.items[idx]
	r.items = append(r.items[:idx], r.items[idx+1:]...)
	r.mu.Unlock()

	r.publish(ctx, EventDeleted, out.ID, out)

	if r.store != nil {
		r.persist(out.ID, "delete appointment", func(ctx context.Context, storeID string) error {
			if err := r.store.Delete(ctx, storeID); err != nil {
				return err
			}
			r.audit.Append(ctx, auditevent.NewEntry(auditevent.AppointmentDeleted, auditevent.EntityAppointment, storeID, map[string]string{
				"patient_name": out.PatientName,
				"start":        out.Date + " " + out.Start,
			}))
			return nil
		})
	}
	return nil
}

// Get returns a copy of the appointment. Replaced local ids still resolve.
func (r *Registry) Get(id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := r.find(id)
	if a == nil {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

// List returns matching appointments ordered by date, then start.
func (r *Registry) List(f Filter) []Appointment {
	dentists := make(map[string]bool, len(f.DentistIDs))
	for _, id := range f.DentistIDs {
		dentists[id] = true
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))

	r.mu.RLock()
	out := make([]Appointment, 0, len(r.items))
	for _, a := range r.items {
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		if len(dentists) > 0 && !dentists[a.DentistID] {
			continue
		}
		if query != "" && !r.matches(a, query) {
			continue
		}
		out = append(out, *a)
	}
	r.mu.RUnlock()

	sortByTime(out)
	return out
}

// ForPatient returns the patient's appointments, newest first. Rows are
// matched by patient id or, when they carry none, by normalized name.
func (r *Registry) ForPatient(p PatientInfo) []Appointment {
	r.mu.RLock()
	var out []Appointment
	for _, a := range r.items {
		if info, ok := r.resolve(a); ok && info.ID == p.ID {
			out = append(out, *a)
		}
	}
	r.mu.RUnlock()

	sortByTime(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PatientLabel is the display name for an appointment's patient.
func (r *Registry) PatientLabel(a Appointment) string {
	if info, ok := r.resolve(&a); ok && info.Name != "" {
		return info.Name
	}
	if a.PatientName != "" {
		return a.PatientName
	}
	return PatientFallbackName
}

// Snapshot is the bookings view the availability engine searches.
func (r *Registry) Snapshot() []availability.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]availability.Booking, len(r.items))
	for i, a := range r.items {
		out[i] = availability.Booking{DentistID: a.DentistID, Date: a.Date, Start: a.Start, End: a.End}
	}
	return out
}

// CountOn returns how many appointments fall on dateKey.
func (r *Registry) CountOn(dateKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.items {
		if a.Date == dateKey {
			n++
		}
	}
	return n
}

func (r *Registry) resolve(a *Appointment) (PatientInfo, bool) {
	if r.patients == nil {
		return PatientInfo{}, false
	}
	if a.PatientID != "" {
		if info, ok := r.patients.ResolveByKey(a.PatientID); ok {
			return info, true
		}
	}
	if a.PatientName != "" {
		return r.patients.ResolveByNormalizedName(a.PatientName)
	}
	return PatientInfo{}, false
}

func (r *Registry) matches(a *Appointment, query string) bool {
	if strings.Contains(strings.ToLower(a.PatientName), query) {
		return true
	}
	info, ok := r.resolve(a)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(info.Name), query) ||
		strings.Contains(strings.ToLower(info.Phone), query)
}

// find must be called with r.mu held.
func (r *Registry) find(id string) *Appointment {
	if i := r.indexOf(id); i >= 0 {
		return r.items[i]
	}
	return nil
}

func (r *Registry) indexOf(id string) int {
	if alias, ok := r.aliases[id]; ok {
		id = alias
	}
	for i, a := range r.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) replaceID(localID, storeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[localID] = storeID
	for _, a := range r.items {
		if a.ID == localID {
			a.ID = storeID
			return
		}
	}
}

// storeID maps an id to the one the store knows. A local id whose insert
// has not succeeded has none.
func (r *Registry) storeID(id string) (string, bool) {
	if !isLocalID(id) {
		return id, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	alias, ok := r.aliases[id]
	return alias, ok
}

// persist queues a write keyed by the appointment's id as it is when the
// job runs, so a write issued before the insert finished still lands.
func (r *Registry) persist(id, name string, fn func(ctx context.Context, storeID string) error) {
	r.enqueue(name, func(ctx context.Context) error {
		storeID, ok := r.storeID(id)
		if !ok {
			r.logger.Warn().Str("appointment_id", id).Str("op", name).Msg("appointment was never stored; skipping remote write")
			return nil
		}
		if err := fn(ctx, storeID); err != nil {
			r.logger.Error().Err(err).Str("appointment_id", storeID).Msg(name)
		}
		return nil
	})
}

func (r *Registry) enqueue(name string, run func(ctx context.Context) error) {
	r.queue.Enqueue(syncq.Job{Name: name, Run: run})
}

func (r *Registry) publish(ctx context.Context, eventType, id string, data interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, websocket.NewEvent(eventType, "appointment", id, data)); err != nil {
		r.logger.Debug().Err(err).Str("event", eventType).Msg("publish board event")
	}
}

func sortByTime(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return slotgrid.Minutes(items[i].Start) < slotgrid.Minutes(items[j].Start)
	})
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
