package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory repositories back local mode and tests.

type MemoryDentistRepo struct {
	mu       sync.RWMutex
	dentists []*Dentist
}

func NewMemoryDentistRepo() *MemoryDentistRepo {
	return &MemoryDentistRepo{}
}

func (m *MemoryDentistRepo) List(context.Context) ([]*Dentist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Dentist, len(m.dentists))
	for i, d := range m.dentists {
		c := *d
		out[i] = &c
	}
	return out, nil
}

func (m *MemoryDentistRepo) Create(_ context.Context, d *Dentist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = "d-" + uuid.NewString()
	}
	d.CreatedAt = time.Now()
	c := *d
	m.dentists = append(m.dentists, &c)
	return nil
}

func (m *MemoryDentistRepo) find(id string) *Dentist {
	for _, d := range m.dentists {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (m *MemoryDentistRepo) Update(_ context.Context, d *Dentist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(d.ID)
	if cur == nil {
		return ErrDentistNotFound
	}
	cur.Name, cur.Specialty, cur.Color = d.Name, d.Specialty, d.Color
	return nil
}

func (m *MemoryDentistRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.find(id)
	if cur == nil {
		return ErrDentistNotFound
	}
	cur.Active = false
	return nil
}

type MemoryVacationRepo struct {
	mu        sync.RWMutex
	vacations []*Vacation
}

func NewMemoryVacationRepo() *MemoryVacationRepo {
	return &MemoryVacationRepo{}
}

func (m *MemoryVacationRepo) List(context.Context) ([]*Vacation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Vacation, len(m.vacations))
	for i, v := range m.vacations {
		c := *v
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out, nil
}

func (m *MemoryVacationRepo) Create(_ context.Context, v *Vacation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now()
	c := *v
	m.vacations = append(m.vacations, &c)
	return nil
}

func (m *MemoryVacationRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.vacations {
		if v.ID == id {
			m.vacations = append(m.vacations[:i], m.vacations[i+1:]...)
			return nil
		}
	}
	return ErrVacationNotFound
}

type MemorySettingsRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingsRepo() *MemorySettingsRepo {
	return &MemorySettingsRepo{values: map[string]string{}}
}

func (m *MemorySettingsRepo) All(context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *MemorySettingsRepo) Upsert(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

type MemoryCatalogRepo struct {
	mu      sync.RWMutex
	entries map[Catalog][]CatalogEntry
}

func NewMemoryCatalogRepo() *MemoryCatalogRepo {
	return &MemoryCatalogRepo{entries: map[Catalog][]CatalogEntry{}}
}

func (m *MemoryCatalogRepo) List(_ context.Context, c Catalog) ([]CatalogEntry, error) {
	if !c.Valid() {
		return nil, ErrUnknownCatalog
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]CatalogEntry(nil), m.entries[c]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *MemoryCatalogRepo) Add(_ context.Context, c Catalog, e *CatalogEntry) error {
	if !c.Valid() {
		return ErrUnknownCatalog
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	m.entries[c] = append(m.entries[c], *e)
	return nil
}

func (m *MemoryCatalogRepo) Delete(_ context.Context, c Catalog, id string) error {
	if !c.Valid() {
		return ErrUnknownCatalog
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[c]
	for i, e := range list {
		if e.ID == id {
			m.entries[c] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}
