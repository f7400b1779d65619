package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentboard/dentboard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type AppointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepoPG(pool *pgxpool.Pool) *AppointmentRepoPG {
	return &AppointmentRepoPG{pool: pool}
}

func (r *AppointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id::text, dentist_id, patient_id, patient_name, start_time, end_time,
	status, insurance, attendance, notes`

func scanRow(row pgx.Row) (Row, error) {
	var a Row
	err := row.Scan(&a.ID, &a.DentistID, &a.PatientID, &a.PatientName, &a.StartTime, &a.EndTime,
		&a.Status, &a.Insurance, &a.Attendance, &a.Notes)
	return a, err
}

func (r *AppointmentRepoPG) List(ctx context.Context) ([]Row, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AppointmentRepoPG) Insert(ctx context.Context, a Row) (Row, error) {
	return scanRow(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (dentist_id, patient_id, patient_name, start_time, end_time,
			status, insurance, attendance, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+apptCols,
		a.DentistID, a.PatientID, a.PatientName, a.StartTime, a.EndTime,
		a.Status, a.Insurance, a.Attendance, a.Notes))
}

func (r *AppointmentRepoPG) Update(ctx context.Context, id string, p RowPatch) error {
	if p.Empty() {
		return nil
	}
	sets := []string{}
	args := []interface{}{id}
	idx := 2

	add := func(col string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, v)
		idx++
	}
	if p.DentistID != nil {
		add("dentist_id", *p.DentistID)
	}
	if p.PatientID != nil {
		add("patient_id", nullIfEmpty(*p.PatientID))
	}
	if p.PatientName != nil {
		add("patient_name", *p.PatientName)
	}
	if p.StartTime != nil {
		add("start_time", *p.StartTime)
	}
	if p.EndTime != nil {
		add("end_time", *p.EndTime)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Insurance != nil {
		add("insurance", *p.Insurance)
	}
	if p.Attendance != nil {
		add("attendance", *p.Attendance)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET `+strings.Join(sets, ", ")+` WHERE id::text = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AppointmentRepoPG) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id::text = $1`, id)
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
