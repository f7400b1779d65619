package clinic

import (
	"errors"
	"time"
)

var (
	ErrDentistNotFound  = errors.New("dentist not found")
	ErrVacationNotFound = errors.New("vacation not found")
	ErrEntryNotFound    = errors.New("catalog entry not found")
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidHours     = errors.New("working hours must satisfy 0 <= start < end <= 24")
	ErrInvalidRange     = errors.New("vacation start must not be after its end")
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrNotConfirmed     = errors.New("deletion requires explicit confirmation")
	ErrUnknownCatalog   = errors.New("unknown catalog")
	ErrKeyRequired      = errors.New("key and label are required")
)

// DefaultDentistColors is the palette new dentists cycle through.
var DefaultDentistColors = []string{"#14b8a6", "#3b82f6", "#a855f7", "#f97316", "#ec4899", "#eab308"}

const DefaultSpecialty = "General Dentistry"

// Dentist is one board column. Removing a dentist only clears Active so
// existing appointments keep their reference.
type Dentist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Color     string    `json:"color"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type DentistPatch struct {
	Name      *string `json:"name"`
	Specialty *string `json:"specialty"`
	Color     *string `json:"color"`
}

// Vacation blocks a dentist for whole days, both ends inclusive.
type Vacation struct {
	ID        string    `json:"id"`
	DentistID string    `json:"dentist_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog names an admin-editable list.
type Catalog string

const (
	CatalogSpecialties      Catalog = "specialties"
	CatalogAppointmentTypes Catalog = "appointment_types"
)

func (c Catalog) Valid() bool {
	return c == CatalogSpecialties || c == CatalogAppointmentTypes
}

// CatalogEntry is a stored key with its Bulgarian label.
type CatalogEntry struct {
	ID    string `json:"id,omitempty"`
	Key   string `json:"key"`
	Label string `json:"label_bg"`
}

// Used when the stored catalog is empty.
var (
	DefaultSpecialties = []CatalogEntry{
		{Key: "General Dentistry", Label: "Обща стоматология"},
		{Key: "Orthodontics", Label: "Ортодонтия"},
		{Key: "Pediatric Dentistry", Label: "Детска стоматология"},
		{Key: "Oral Surgery", Label: "Орална хирургия"},
	}
	DefaultAppointmentTypes = []CatalogEntry{
		{Key: "Checkup", Label: "Преглед"},
		{Key: "Filling", Label: "Пломба"},
		{Key: "Extraction", Label: "Вадене"},
		{Key: "Consultation", Label: "Консултация"},
		{Key: "Follow-up", Label: "Контролен преглед"},
		{Key: "Cleaning", Label: "Почистка"},
	}
)

func defaultsFor(c Catalog) []CatalogEntry {
	var src []CatalogEntry
	switch c {
	case CatalogSpecialties:
		src = DefaultSpecialties
	case CatalogAppointmentTypes:
		src = DefaultAppointmentTypes
	}
	out := make([]CatalogEntry, len(src))
	copy(out, src)
	return out
}

// Label returns the label for key, or key itself when unknown.
func Label(entries []CatalogEntry, key string) string {
	for _, e := range entries {
		if e.Key == key {
			return e.Label
		}
	}
	return key
}

// Settings keys.
const (
	SettingHoursStart = "working_hours_start"
	SettingHoursEnd   = "working_hours_end"
)

// Stats is the admin panel summary.
type Stats struct {
	AppointmentsToday int `json:"appointments_today"`
	PatientsCount     int `json:"patients_count"`
	DentistsCount     int `json:"dentists_count"`
}
