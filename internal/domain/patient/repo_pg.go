package patient

import (
	"context"
	"errors"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lars/lars/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, patient_code, enrollment_date, created_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var enrolled pgtype.Date
	if err := row.Scan(&p.ID, &p.Code, &enrolled, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.EnrollmentDate, _ = db.CivilDate(enrolled)
	return &p, nil
}

// Upsert relies on the no-op DO UPDATE so RETURNING yields the existing row
// on conflict; enrollment_date is never overwritten.
func (r *patientRepoPG) Upsert(ctx context.Context, code string, enrolledOn civil.Date) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, patient_code, enrollment_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (patient_code) DO UPDATE SET patient_code = EXCLUDED.patient_code
		RETURNING `+patientCols,
		uuid.New(), code, db.DateParam(enrolledOn)))
}

func (r *patientRepoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_code = $1`, code))
}

func (r *patientRepoPG) EnrollmentDate(ctx context.Context, code string) (civil.Date, bool, error) {
	var enrolled pgtype.Date
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT enrollment_date FROM patients WHERE patient_code = $1`, code).Scan(&enrolled)
	if errors.Is(err, pgx.ErrNoRows) {
		return civil.Date{}, false, nil
	}
	if err != nil {
		return civil.Date{}, false, err
	}
	d, ok := db.CivilDate(enrolled)
	return d, ok, nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC, patient_code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
