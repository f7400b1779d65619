package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/dentboard/dentboard/internal/domain/scheduling"
)

const localIDPrefix = "p-"

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrNameRequired    = errors.New("name is required")
	ErrNotConfirmed    = errors.New("deletion requires explicit confirmation")
)

// Patient maps to the patients table.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	EGN       string    `json:"egn"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Patient) trim() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.EGN = strings.TrimSpace(p.EGN)
	p.Email = strings.TrimSpace(p.Email)
	p.Notes = strings.TrimSpace(p.Notes)
}

func (p *Patient) info() scheduling.PatientInfo {
	return scheduling.PatientInfo{ID: p.ID, Name: p.Name, Phone: p.Phone}
}

// Matches is the sidebar search: case-insensitive substring over the text
// fields, plain substring over phone and EGN.
func (p *Patient) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(p.Phone, q) ||
		strings.Contains(strings.ToLower(p.Notes), q) ||
		strings.Contains(strings.ToLower(p.Address), q) ||
		strings.Contains(p.EGN, q) ||
		strings.Contains(strings.ToLower(p.Email), q)
}

// NormalizeName is the legacy match key for appointments that only carry a
// patient name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PatientPatch lists fields to change. Nil fields are left alone.
type PatientPatch struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	EGN     *string `json:"egn"`
	Email   *string `json:"email"`
	Notes   *string `json:"notes"`
}

func (pp PatientPatch) Empty() bool {
	return pp == PatientPatch{}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (pp PatientPatch) trim() PatientPatch {
	return PatientPatch{
		Name:    trimmed(pp.Name),
		Phone:   trimmed(pp.Phone),
		Address: trimmed(pp.Address),
		EGN:     trimmed(pp.EGN),
		Email:   trimmed(pp.Email),
		Notes:   trimmed(pp.Notes),
	}
}

func (pp PatientPatch) apply(p Patient) Patient {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Phone != nil {
		p.Phone = *pp.Phone
	}
	if pp.Address != nil {
		p.Address = *pp.Address
	}
	if pp.EGN != nil {
		p.EGN = *pp.EGN
	}
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Notes != nil {
		p.Notes = *pp.Notes
	}
	return p
}

// changes is the audit detail for an update.
func (pp PatientPatch) changes() map[string]string {
	out := map[string]string{}
	set := func(k string, v *string) {
		if v != nil {
			out[k] = *v
		}
	}
	set("name", pp.Name)
	set("phone", pp.Phone)
	set("address", pp.Address)
	set("egn", pp.EGN)
	set("email", pp.Email)
	set("notes", pp.Notes)
	return out
}

// File is one uploaded patient document. URL is filled on read.
type File struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url,omitempty"`
}
