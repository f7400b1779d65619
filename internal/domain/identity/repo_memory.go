package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryFileRepo keeps file metadata for local mode.
type MemoryFileRepo struct {
	mu    sync.RWMutex
	files map[string]*File
	now   func() time.Time
}

func NewMemoryFileRepo() *MemoryFileRepo {
	return &MemoryFileRepo{files: make(map[string]*File), now: time.Now}
}

func (m *MemoryFileRepo) ListByPatient(_ context.Context, patientID string) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*File
	for _, f := range m.files {
		if f.PatientID == patientID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryFileRepo) Get(_ context.Context, id string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	c := *f
	return &c, nil
}

func (m *MemoryFileRepo) Insert(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.NewString()
	f.CreatedAt = m.now()
	c := *f
	m.files[f.ID] = &c
	return nil
}

func (m *MemoryFileRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(m.files, id)
	return nil
}
