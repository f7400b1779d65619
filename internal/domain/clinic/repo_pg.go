package clinic

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentboard/dentboard/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgBase struct {
	pool *pgxpool.Pool
}

func (b pgBase) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return b.pool
}

// -- Dentists --

type DentistRepoPG struct{ pgBase }

func NewDentistRepoPG(pool *pgxpool.Pool) *DentistRepoPG {
	return &DentistRepoPG{pgBase{pool}}
}

const dentistCols = `id::text, name, specialty, color, active, created_at`

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Color, &d.Active, &d.CreatedAt)
	return &d, err
}

func (r *DentistRepoPG) List(ctx context.Context) ([]*Dentist, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+dentistCols+` FROM dentists ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Dentist
	for rows.Next() {
		d, err := scanDentist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DentistRepoPG) Create(ctx context.Context, d *Dentist) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dentists (name, specialty, color, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		d.Name, d.Specialty, d.Color, d.Active,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DentistRepoPG) Update(ctx context.Context, d *Dentist) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentists SET name = $2, specialty = $3, color = $4 WHERE id::text = $1`,
		d.ID, d.Name, d.Specialty, d.Color)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDentistNotFound
	}
	return nil
}

func (r *DentistRepoPG) Deactivate(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE dentists SET active = false WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDentistNotFound
	}
	return nil
}

// -- Vacations --

type VacationRepoPG struct{ pgBase }

func NewVacationRepoPG(pool *pgxpool.Pool) *VacationRepoPG {
	return &VacationRepoPG{pgBase{pool}}
}

const vacationCols = `id::text, dentist_id, start_date::text, end_date::text, COALESCE(note, ''), created_at`

func scanVacation(row pgx.Row) (*Vacation, error) {
	var v Vacation
	err := row.Scan(&v.ID, &v.DentistID, &v.StartDate, &v.EndDate, &v.Note, &v.CreatedAt)
	return &v, err
}

func (r *VacationRepoPG) List(ctx context.Context) ([]*Vacation, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vacationCols+` FROM doctor_vacations ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Vacation
	for rows.Next() {
		v, err := scanVacation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VacationRepoPG) Create(ctx context.Context, v *Vacation) error {
	var note interface{}
	if v.Note != "" {
		note = v.Note
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_vacations (dentist_id, start_date, end_date, note)
		VALUES ($1, $2::date, $3::date, $4)
		RETURNING id::text, created_at`,
		v.DentistID, v.StartDate, v.EndDate, note,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *VacationRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_vacations WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVacationNotFound
	}
	return nil
}

// -- Settings --

type SettingsRepoPG struct{ pgBase }

func NewSettingsRepoPG(pool *pgxpool.Pool) *SettingsRepoPG {
	return &SettingsRepoPG{pgBase{pool}}
}

func (r *SettingsRepoPG) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT key, value FROM clinic_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Upsert writes every key in one transaction.
func (r *SettingsRepoPG) Upsert(ctx context.Context, values map[string]string) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		for k, v := range values {
			if _, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO clinic_settings (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// -- Catalogs --

type CatalogRepoPG struct{ pgBase }

func NewCatalogRepoPG(pool *pgxpool.Pool) *CatalogRepoPG {
	return &CatalogRepoPG{pgBase{pool}}
}

// table maps a catalog to its table. Only the two fixed names can reach SQL.
func table(c Catalog) (string, error) {
	switch c {
	case CatalogSpecialties:
		return "specialties", nil
	case CatalogAppointmentTypes:
		return "appointment_types", nil
	}
	return "", ErrUnknownCatalog
}

func (r *CatalogRepoPG) List(ctx context.Context, c Catalog) ([]CatalogEntry, error) {
	t, err := table(c)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT id::text, key, label_bg FROM `+t+` ORDER BY label_bg`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.Label); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CatalogRepoPG) Add(ctx context.Context, c Catalog, e *CatalogEntry) error {
	t, err := table(c)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO `+t+` (key, label_bg) VALUES ($1, $2) RETURNING id::text`, e.Key, e.Label,
	).Scan(&e.ID)
}

func (r *CatalogRepoPG) Delete(ctx context.Context, c Catalog, id string) error {
	t, err := table(c)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+t+` WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// IsNotFound reports whether err is one of the package's not-found errors
// or pgx.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDentistNotFound) || errors.Is(err, ErrVacationNotFound) ||
		errors.Is(err, ErrEntryNotFound) || errors.Is(err, pgx.ErrNoRows)
}
