package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Patient Repository --

type PatientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepoPG(pool *pgxpool.Pool) *PatientRepoPG {
	return &PatientRepoPG{pool: pool}
}

const patientCols = `id::text, name, COALESCE(phone, ''), COALESCE(address, ''), COALESCE(egn, ''),
	COALESCE(email, ''), COALESCE(notes, ''), created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Address, &p.EGN, &p.Email, &p.Notes, &p.CreatedAt)
	return &p, err
}

func (r *PatientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PatientRepoPG) Insert(ctx context.Context, p *Patient) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (name, phone, address, egn, email, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at`,
		p.Name, nullIfEmpty(p.Phone), nullIfEmpty(p.Address), nullIfEmpty(p.EGN),
		nullIfEmpty(p.Email), nullIfEmpty(p.Notes),
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *PatientRepoPG) Update(ctx context.Context, id string, patch PatientPatch) error {
	if patch.Empty() {
		return nil
	}
	sets := []string{}
	args := []interface{}{id}
	idx := 2

	add := func(col string, v *string, nullable bool) {
		if v == nil {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		if nullable {
			args = append(args, nullIfEmpty(*v))
		} else {
			args = append(args, *v)
		}
		idx++
	}
	add("name", patch.Name, false)
	add("phone", patch.Phone, true)
	add("address", patch.Address, true)
	add("egn", patch.EGN, true)
	add("email", patch.Email, true)
	add("notes", patch.Notes, true)

	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET `+strings.Join(sets, ", ")+` WHERE id::text = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// -- File Repository --

type FileRepoPG struct {
	pool *pgxpool.Pool
}

func NewFileRepoPG(pool *pgxpool.Pool) *FileRepoPG {
	return &FileRepoPG{pool: pool}
}

const fileCols = `id::text, patient_id::text, file_name, storage_path, COALESCE(content_type, ''), created_at`

func scanFile(row pgx.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.PatientID, &f.FileName, &f.StoragePath, &f.ContentType, &f.CreatedAt)
	return &f, err
}

func (r *FileRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*File, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE patient_id::text = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FileRepoPG) Get(ctx context.Context, id string) (*File, error) {
	f, err := scanFile(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	return f, err
}

func (r *FileRepoPG) Insert(ctx context.Context, f *File) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_files (patient_id, file_name, storage_path, content_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		f.PatientID, f.FileName, f.StoragePath, nullIfEmpty(f.ContentType),
	).Scan(&f.ID, &f.CreatedAt)
}

func (r *FileRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM patient_files WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
