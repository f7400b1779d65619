package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/internal/platform/syncq"
	"github.com/dentboard/dentboard/internal/platform/websocket"
)

const (
	EventPatientAdded   = "patient.added"
	EventPatientUpdated = "patient.updated"
)

// Directory is the in-memory patient roster. Adds go to the store first so
// the patient has its real id before any appointment references it; edits
// apply locally and are written behind through the sync queue. Without a
// store, patients get local p- ids and nothing is audited.
type Directory struct {
	mu    sync.RWMutex
	items []*Patient

	store  PatientStore
	audit  auditevent.Sink
	events websocket.EventPublisher
	queue  *syncq.Queue
	logger zerolog.Logger
}

type DirectoryOption func(*Directory)

func WithEvents(p websocket.EventPublisher) DirectoryOption {
	return func(d *Directory) { d.events = p }
}

func NewDirectory(store PatientStore, audit auditevent.Sink, queue *syncq.Queue, logger zerolog.Logger, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store:  store,
		audit:  audit,
		queue:  queue,
		logger: logger.With().Str("component", "patients").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.audit == nil {
		d.audit = auditevent.NopSink{}
	}
	return d
}

// Load replaces the roster with the store's rows.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	rows, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	d.mu.Lock()
	d.items = rows
	d.mu.Unlock()
	return nil
}

func (d *Directory) Add(ctx context.Context, p Patient) (*Patient, error) {
	p.trim()
	if p.Name == "" {
		return nil, ErrNameRequired
	}
	if d.store != nil {
		if err := d.store.Insert(ctx, &p); err != nil {
			return nil, fmt.Errorf("insert patient: %w", err)
		}
		d.audit.Append(ctx, auditevent.NewEntry(auditevent.PatientAdded, auditevent.EntityPatient, p.ID, map[string]string{"name": p.Name}))
	} else {
		p.ID = localIDPrefix + uuid.NewString()
	}

	d.mu.Lock()
	stored := p
	d.items = append(d.items, &stored)
	d.mu.Unlock()

	d.publish(ctx, EventPatientAdded, p)
	return &p, nil
}

// Update applies the patch locally and queues the remote write.
// patient_updated is audited once the write succeeds.
func (d *Directory) Update(ctx context.Context, id string, patch PatientPatch) (*Patient, error) {
	patch = patch.trim()
	if patch.Name != nil && *patch.Name == "" {
		return nil, ErrNameRequired
	}

	d.mu.Lock()
	var target *Patient
	for _, p := range d.items {
		if p.ID == id {
			target = p
			break
		}
	}
	if target == nil {
		d.mu.Unlock()
		return nil, ErrPatientNotFound
	}
	*target = patch.apply(*target)
	out := *target
	d.mu.Unlock()

	d.publish(ctx, EventPatientUpdated, out)

	if d.store != nil && !patch.Empty() {
		d.queue.Enqueue(syncq.Job{
			Name: "update patient",
			Run: func(ctx context.Context) error {
				if err := d.store.Update(ctx, id, patch); err != nil {
					d.logger.Error().Err(err).Str("patient_id", id).Msg("persist patient update")
					return nil
				}
				d.audit.Append(ctx, auditevent.NewEntry(auditevent.PatientUpdated, auditevent.EntityPatient, id, patch.changes()))
				return nil
			},
		})
	}
	return &out, nil
}

func (d *Directory) Get(id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.items {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, ErrPatientNotFound
}

// List returns the roster ordered by name.
func (d *Directory) List() []Patient {
	d.mu.RLock()
	out := make([]Patient, len(d.items))
	for i, p := range d.items {
		out[i] = *p
	}
	d.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Search returns matching patients; an empty query matches nobody.
func (d *Directory) Search(query string) []Patient {
	var out []Patient
	for _, p := range d.List() {
		if p.Matches(query) {
			out = append(out, p)
		}
	}
	return out
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// ResolveByKey finds a patient by id.
func (d *Directory) ResolveByKey(id string) (scheduling.PatientInfo, bool) {
	if id == "" {
		return scheduling.PatientInfo{}, false
	}
	p, err := d.Get(id)
	if err != nil {
		return scheduling.PatientInfo{}, false
	}
	return p.info(), true
}

// ResolveByNormalizedName matches trimmed, case-folded names. The first
// patient in roster order wins when names collide.
func (d *Directory) ResolveByNormalizedName(name string) (scheduling.PatientInfo, bool) {
	key := NormalizeName(name)
	if key == "" {
		return scheduling.PatientInfo{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.items {
		if NormalizeName(p.Name) == key {
			return p.info(), true
		}
	}
	return scheduling.PatientInfo{}, false
}

// Resolve tries the id first and falls back to the name.
func (d *Directory) Resolve(id, name string) (scheduling.PatientInfo, bool) {
	if info, ok := d.ResolveByKey(id); ok {
		return info, true
	}
	return d.ResolveByNormalizedName(name)
}

func (d *Directory) publish(ctx context.Context, eventType string, p Patient) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, websocket.NewEvent(eventType, "patient", p.ID, p)); err != nil {
		d.logger.Debug().Err(err).Str("event", eventType).Msg("publish patient event")
	}
}
