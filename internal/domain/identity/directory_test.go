package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentboard/dentboard/internal/domain/auditevent"
	"github.com/dentboard/dentboard/internal/platform/syncq"
)

// -- Mocks --

type mockPatientStore struct {
	mu        sync.Mutex
	patients  map[string]*Patient
	listErr   error
	insertErr error
	updateErr error
	updates   []PatientPatch
}

func newMockPatientStore(seed ...*Patient) *mockPatientStore {
	m := &mockPatientStore{patients: make(map[string]*Patient)}
	for _, p := range seed {
		m.patients[p.ID] = p
	}
	return m
}

func (m *mockPatientStore) List(_ context.Context) ([]*Patient, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Patient
	for _, p := range m.patients {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockPatientStore) Insert(_ context.Context, p *Patient) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	c := *p
	m.patients[p.ID] = &c
	return nil
}

func (m *mockPatientStore) Update(_ context.Context, id string, patch PatientPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, patch)
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	*p = patch.apply(*p)
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []auditevent.Entry
}

func (s *recordingSink) Append(_ context.Context, e auditevent.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) actions() []auditevent.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auditevent.Action, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

func newQueue(t *testing.T) *syncq.Queue {
	t.Helper()
	q := syncq.New(zerolog.Nop())
	q.Start(context.Background())
	t.Cleanup(q.Close)
	return q
}

func strPtr(s string) *string { return &s }

// -- Tests --

func TestDirectory_AddWithStore(t *testing.T) {
	store := newMockPatientStore()
	sink := &recordingSink{}
	d := NewDirectory(store, sink, newQueue(t), zerolog.Nop())

	p, err := d.Add(context.Background(), Patient{Name: "  Ivan Petrov ", Phone: " 0888 "})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if strings.HasPrefix(p.ID, localIDPrefix) || p.ID == "" {
		t.Errorf("expected store id, got %q", p.ID)
	}
	if p.Name != "Ivan Petrov" || p.Phone != "0888" {
		t.Errorf("fields not trimmed: %+v", p)
	}
	if got := sink.actions(); len(got) != 1 || got[0] != auditevent.PatientAdded {
		t.Errorf("expected patient_added, got %v", got)
	}
	if d.Count() != 1 {
		t.Errorf("expected 1 patient, got %d", d.Count())
	}
}

func TestDirectory_AddLocalMode(t *testing.T) {
	sink := &recordingSink{}
	d := NewDirectory(nil, sink, newQueue(t), zerolog.Nop())

	p, err := d.Add(context.Background(), Patient{Name: "Maria"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(p.ID, localIDPrefix) {
		t.Errorf("expected local id, got %q", p.ID)
	}
	if len(sink.actions()) != 0 {
		t.Errorf("local mode must not audit")
	}
}

func TestDirectory_AddRequiresName(t *testing.T) {
	d := NewDirectory(nil, nil, newQueue(t), zerolog.Nop())
	if _, err := d.Add(context.Background(), Patient{Name: "   "}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestDirectory_AddStoreFailure(t *testing.T) {
	store := newMockPatientStore()
	store.insertErr = errors.New("db down")
	d := NewDirectory(store, &recordingSink{}, newQueue(t), zerolog.Nop())

	if _, err := d.Add(context.Background(), Patient{Name: "Ivan"}); err == nil {
		t.Fatal("expected error")
	}
	if d.Count() != 0 {
		t.Errorf("failed insert must not add locally")
	}
}

func TestDirectory_UpdateOptimistic(t *testing.T) {
	store := newMockPatientStore(&Patient{ID: "p1", Name: "Ivan Petrov", Phone: "0888"})
	sink := &recordingSink{}
	q := newQueue(t)
	d := NewDirectory(store, sink, q, zerolog.Nop())
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	p, err := d.Update(context.Background(), "p1", PatientPatch{Phone: strPtr(" 0899 "), Notes: strPtr("allergic")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Phone != "0899" || p.Notes != "allergic" || p.Name != "Ivan Petrov" {
		t.Errorf("unexpected patient %+v", p)
	}
	q.Wait()

	if got := sink.actions(); len(got) != 1 || got[0] != auditevent.PatientUpdated {
		t.Errorf("expected patient_updated, got %v", got)
	}
	if store.patients["p1"].Phone != "0899" {
		t.Errorf("store not updated: %+v", store.patients["p1"])
	}
}

func TestDirectory_UpdateFailureKeepsLocal(t *testing.T) {
	store := newMockPatientStore(&Patient{ID: "p1", Name: "Ivan Petrov"})
	store.updateErr = errors.New("timeout")
	sink := &recordingSink{}
	q := newQueue(t)
	d := NewDirectory(store, sink, q, zerolog.Nop())
	d.Load(context.Background())

	if _, err := d.Update(context.Background(), "p1", PatientPatch{Name: strPtr("Ivan P.")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	q.Wait()

	got, _ := d.Get("p1")
	if got.Name != "Ivan P." {
		t.Errorf("local change must stand, got %q", got.Name)
	}
	if len(sink.actions()) != 0 {
		t.Errorf("failed write must not audit, got %v", sink.actions())
	}
}

func TestDirectory_UpdateErrors(t *testing.T) {
	d := NewDirectory(nil, nil, newQueue(t), zerolog.Nop())
	ctx := context.Background()
	if _, err := d.Update(ctx, "missing", PatientPatch{}); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
	p, _ := d.Add(ctx, Patient{Name: "Ivan"})
	if _, err := d.Update(ctx, p.ID, PatientPatch{Name: strPtr(" ")}); !errors.Is(err, ErrNameRequired) {
		t.Errorf("expected ErrNameRequired, got %v", err)
	}
}

func TestDirectory_Resolution(t *testing.T) {
	store := newMockPatientStore(
		&Patient{ID: "p1", Name: "Ivan Petrov", Phone: "0888"},
		&Patient{ID: "p2", Name: "Maria Georgieva"},
	)
	d := NewDirectory(store, nil, newQueue(t), zerolog.Nop())
	d.Load(context.Background())

	if info, ok := d.ResolveByKey("p1"); !ok || info.Name != "Ivan Petrov" || info.Phone != "0888" {
		t.Errorf("ResolveByKey = %+v, %v", info, ok)
	}
	if _, ok := d.ResolveByKey(""); ok {
		t.Error("empty id must not resolve")
	}
	if info, ok := d.ResolveByNormalizedName("  maria GEORGIEVA "); !ok || info.ID != "p2" {
		t.Errorf("ResolveByNormalizedName = %+v, %v", info, ok)
	}
	if info, ok := d.Resolve("gone", "ivan petrov"); !ok || info.ID != "p1" {
		t.Errorf("Resolve should fall back to the name, got %+v, %v", info, ok)
	}
	if _, ok := d.Resolve("", ""); ok {
		t.Error("nothing to resolve")
	}
}

func TestDirectory_ListAndSearch(t *testing.T) {
	d := NewDirectory(nil, nil, newQueue(t), zerolog.Nop())
	ctx := context.Background()
	d.Add(ctx, Patient{Name: "maria", Phone: "0877"})
	d.Add(ctx, Patient{Name: "Ivan", Email: "ivan@example.com", EGN: "8001011234"})
	d.Add(ctx, Patient{Name: "Boris", Address: "Sofia, Vitosha 1"})

	list := d.List()
	if len(list) != 3 || list[0].Name != "Boris" || list[2].Name != "maria" {
		t.Errorf("expected name order, got %v", list)
	}

	tests := []struct {
		q    string
		want int
	}{
		{"IVAN", 1},
		{"0877", 1},
		{"800101", 1},
		{"sofia", 1},
		{"example.com", 1},
		{"", 0},
		{"nobody", 0},
	}
	for _, tt := range tests {
		if got := d.Search(tt.q); len(got) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.q, len(got), tt.want)
		}
	}
}

func TestDirectory_LoadError(t *testing.T) {
	store := newMockPatientStore()
	store.listErr = errors.New("relation \"patients\" does not exist")
	d := NewDirectory(store, nil, newQueue(t), zerolog.Nop())
	if err := d.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}
