package clinic

import "context"

// DentistRepository persists the roster. List includes inactive dentists.
type DentistRepository interface {
	List(ctx context.Context) ([]*Dentist, error)
	Create(ctx context.Context, d *Dentist) error
	Update(ctx context.Context, d *Dentist) error
	Deactivate(ctx context.Context, id string) error
}

type VacationRepository interface {
	List(ctx context.Context) ([]*Vacation, error)
	Create(ctx context.Context, v *Vacation) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository is a key-value table.
type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, values map[string]string) error
}

// CatalogRepository lists entries ordered by label.
type CatalogRepository interface {
	List(ctx context.Context, c Catalog) ([]CatalogEntry, error)
	Add(ctx context.Context, c Catalog, e *CatalogEntry) error
	Delete(ctx context.Context, c Catalog, id string) error
}
