package identity

import "context"

// PatientStore is the store of record for patients. Insert fills ID and
// CreatedAt.
type PatientStore interface {
	List(ctx context.Context) ([]*Patient, error)
	Insert(ctx context.Context, p *Patient) error
	Update(ctx context.Context, id string, patch PatientPatch) error
}

// FileRepository keeps patient file metadata. ListByPatient returns newest
// first.
type FileRepository interface {
	ListByPatient(ctx context.Context, patientID string) ([]*File, error)
	Get(ctx context.Context, id string) (*File, error)
	Insert(ctx context.Context, f *File) error
	Delete(ctx context.Context, id string) error
}
