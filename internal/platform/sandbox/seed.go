// Package sandbox fills an empty clinic with dentists, patients, catalogs
// and appointments, either from a YAML seed file or from a reproducible
// demo generator.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/internal/domain/identity"
	"github.com/dentboard/dentboard/internal/domain/scheduling"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

// SeedFile is the YAML layout read by `dentboard-server seed`.
type SeedFile struct {
	WorkingHours *slotgrid.WorkingHours `yaml:"working_hours" json:"working_hours,omitempty"`
	Specialties  []CatalogSeed          `yaml:"specialties" json:"specialties,omitempty"`
	Types        []CatalogSeed          `yaml:"appointment_types" json:"appointment_types,omitempty"`
	Dentists     []DentistSeed          `yaml:"dentists" json:"dentists,omitempty"`
	Patients     []PatientSeed          `yaml:"patients" json:"patients,omitempty"`
	Appointments []AppointmentSeed      `yaml:"appointments" json:"appointments,omitempty"`
}

type CatalogSeed struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

type DentistSeed struct {
	Name      string `yaml:"name" json:"name"`
	Specialty string `yaml:"specialty" json:"specialty"`
	Color     string `yaml:"color" json:"color,omitempty"`
}

type PatientSeed struct {
	Name    string `yaml:"name" json:"name"`
	Phone   string `yaml:"phone" json:"phone,omitempty"`
	Email   string `yaml:"email" json:"email,omitempty"`
	Address string `yaml:"address" json:"address,omitempty"`
	EGN     string `yaml:"egn" json:"egn,omitempty"`
	Notes   string `yaml:"notes" json:"notes,omitempty"`
}

// AppointmentSeed names its dentist and patient instead of referencing ids,
// since ids are only known once the seed has been applied.
type AppointmentSeed struct {
	Dentist   string `yaml:"dentist" json:"dentist"`
	Patient   string `yaml:"patient" json:"patient"`
	Date      string `yaml:"date" json:"date"`
	Start     string `yaml:"start" json:"start"`
	Duration  int    `yaml:"duration" json:"duration,omitempty"`
	Type      string `yaml:"type" json:"type,omitempty"`
	Insurance string `yaml:"insurance" json:"insurance,omitempty"`
	Notes     string `yaml:"notes" json:"notes,omitempty"`
}

// Parse decodes a seed file. Unknown keys are rejected so typos surface.
func Parse(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*SeedFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Clinic is the part of the clinic service the seeder writes to.
type Clinic interface {
	Dentists(ctx context.Context, includeInactive bool) ([]*clinic.Dentist, error)
	AddDentist(ctx context.Context, d clinic.Dentist) (*clinic.Dentist, error)
	Catalog(ctx context.Context, c clinic.Catalog) ([]clinic.CatalogEntry, error)
	AddCatalogEntry(ctx context.Context, c clinic.Catalog, key, label string) (*clinic.CatalogEntry, error)
	WorkingHours(ctx context.Context) slotgrid.WorkingHours
	SaveWorkingHours(ctx context.Context, wh slotgrid.WorkingHours) error
}

type Patients interface {
	Add(ctx context.Context, p identity.Patient) (*identity.Patient, error)
	ResolveByNormalizedName(name string) (scheduling.PatientInfo, bool)
}

type Appointments interface {
	Create(ctx context.Context, in scheduling.CreateInput) (*scheduling.Appointment, error)
	List(f scheduling.Filter) []scheduling.Appointment
}

// SeedResult counts what Apply created. Existing records are skipped and
// counted separately.
type SeedResult struct {
	Dentists       int `json:"dentists"`
	Patients       int `json:"patients"`
	CatalogEntries int `json:"catalog_entries"`
	Appointments   int `json:"appointments"`
	Skipped        int `json:"skipped"`
}

type Seeder struct {
	clinic       Clinic
	patients     Patients
	appointments Appointments
}

func NewSeeder(c Clinic, p Patients, a Appointments) *Seeder {
	return &Seeder{clinic: c, patients: p, appointments: a}
}

// Apply writes the seed. It is idempotent by name: dentists and patients
// already on file, catalog keys already present and appointments already
// booked at the same dentist, date and start are left alone.
func (s *Seeder) Apply(ctx context.Context, f *SeedFile) (*SeedResult, error) {
	res := &SeedResult{}

	if f.WorkingHours != nil {
		if err := s.clinic.SaveWorkingHours(ctx, *f.WorkingHours); err != nil {
			return res, fmt.Errorf("working hours: %w", err)
		}
	}

	if err := s.seedCatalog(ctx, clinic.CatalogSpecialties, f.Specialties, res); err != nil {
		return res, err
	}
	if err := s.seedCatalog(ctx, clinic.CatalogAppointmentTypes, f.Types, res); err != nil {
		return res, err
	}

	dentists, err := s.seedDentists(ctx, f.Dentists, res)
	if err != nil {
		return res, err
	}

	for _, p := range f.Patients {
		if _, ok := s.patients.ResolveByNormalizedName(p.Name); ok {
			res.Skipped++
			continue
		}
		_, err := s.patients.Add(ctx, identity.Patient{
			Name: p.Name, Phone: p.Phone, Email: p.Email,
			Address: p.Address, EGN: p.EGN, Notes: p.Notes,
		})
		if err != nil {
			return res, fmt.Errorf("patient %q: %w", p.Name, err)
		}
		res.Patients++
	}

	for _, a := range f.Appointments {
		dentistID, ok := dentists[strings.ToLower(strings.TrimSpace(a.Dentist))]
		if !ok {
			return res, fmt.Errorf("appointment on %s %s: unknown dentist %q", a.Date, a.Start, a.Dentist)
		}
		if s.booked(dentistID, a.Date, a.Start) {
			res.Skipped++
			continue
		}
		in := scheduling.CreateInput{
			DentistID:       dentistID,
			PatientName:     a.Patient,
			Date:            a.Date,
			Start:           a.Start,
			DurationMinutes: a.Duration,
			Type:            a.Type,
			Insurance:       scheduling.Insurance(a.Insurance),
			Notes:           a.Notes,
		}
		if info, ok := s.patients.ResolveByNormalizedName(a.Patient); ok {
			in.PatientID = info.ID
		}
		if _, err := s.appointments.Create(ctx, in); err != nil {
			return res, fmt.Errorf("appointment on %s %s: %w", a.Date, a.Start, err)
		}
		res.Appointments++
	}

	return res, nil
}

// Demo generates a demo clinic starting at from and applies it.
func (s *Seeder) Demo(ctx context.Context, cfg DemoConfig, from time.Time) (*SeedResult, error) {
	f := NewDataGenerator(cfg.Seed).Demo(cfg, from, s.clinic.WorkingHours(ctx))
	return s.Apply(ctx, f)
}

func (s *Seeder) seedCatalog(ctx context.Context, c clinic.Catalog, entries []CatalogSeed, res *SeedResult) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.clinic.Catalog(ctx, c)
	if err != nil {
		return fmt.Errorf("%s: %w", c, err)
	}
	// Built-in defaults carry no id; they are replaced, not extended.
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		if e.ID != "" {
			have[e.Key] = true
		}
	}
	for _, e := range entries {
		if have[e.Key] {
			res.Skipped++
			continue
		}
		if _, err := s.clinic.AddCatalogEntry(ctx, c, e.Key, e.Label); err != nil {
			return fmt.Errorf("%s %q: %w", c, e.Key, err)
		}
		have[e.Key] = true
		res.CatalogEntries++
	}
	return nil
}

// seedDentists returns every dentist on file keyed by lower-cased name.
func (s *Seeder) seedDentists(ctx context.Context, seeds []DentistSeed, res *SeedResult) (map[string]string, error) {
	current, err := s.clinic.Dentists(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list dentists: %w", err)
	}
	byName := make(map[string]string, len(current)+len(seeds))
	for _, d := range current {
		byName[strings.ToLower(d.Name)] = d.ID
	}
	for _, d := range seeds {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if _, ok := byName[key]; ok {
			res.Skipped++
			continue
		}
		added, err := s.clinic.AddDentist(ctx, clinic.Dentist{Name: d.Name, Specialty: d.Specialty, Color: d.Color})
		if err != nil {
			return nil, fmt.Errorf("dentist %q: %w", d.Name, err)
		}
		byName[key] = added.ID
		res.Dentists++
	}
	return byName, nil
}

func (s *Seeder) booked(dentistID, date, start string) bool {
	for _, a := range s.appointments.List(scheduling.Filter{Date: date, DentistIDs: []string{dentistID}}) {
		if a.Start == start {
			return true
		}
	}
	return false
}
