package auditevent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names the mutation an entry records.
type Action string

const (
	AppointmentCreated Action = "appointment_created"
	AppointmentUpdated Action = "appointment_updated"
	AppointmentDeleted Action = "appointment_deleted"
	AppointmentMoved   Action = "appointment_moved"
	VacationAdded      Action = "vacation_added"
	VacationDeleted    Action = "vacation_deleted"
	PatientAdded       Action = "patient_added"
	PatientUpdated     Action = "patient_updated"
	DentistAdded       Action = "dentist_added"
	DentistDeleted     Action = "dentist_deleted"
	FileUploaded       Action = "file_uploaded"
	FileDeleted        Action = "file_deleted"
)

// Entity types.
const (
	EntityAppointment = "appointment"
	EntityVacation    = "vacation"
	EntityPatient     = "patient"
	EntityDentist     = "dentist"
	EntityFile        = "patient_file"
)

// RecentLimit is how many entries the activity view shows.
const RecentLimit = 80

type Entry struct {
	ID         uuid.UUID       `json:"id"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewEntry builds an entry, marshalling details. Unmarshalable details are
// dropped rather than failing the audit.
func NewEntry(action Action, entityType, entityID string, details interface{}) Entry {
	e := Entry{Action: action, EntityType: entityType, EntityID: entityID}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			e.Details = raw
		}
	}
	return e
}
