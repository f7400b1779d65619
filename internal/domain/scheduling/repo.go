package scheduling

import "context"

// AppointmentStore is the store of record for appointments.
type AppointmentStore interface {
	// List returns every appointment ordered by start time.
	List(ctx context.Context) ([]Row, error)
	// Insert stores r and returns the row with its assigned id.
	Insert(ctx context.Context, r Row) (Row, error)
	Update(ctx context.Context, id string, p RowPatch) error
	Delete(ctx context.Context, id string) error
}
