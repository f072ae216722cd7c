package entry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lars/lars/internal/domain/schedule"
	"github.com/lars/lars/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type tableSpec struct {
	name string
	// answers renders the type-specific columns as one JSON object.
	answers string
}

var tables = map[schedule.Type]tableSpec{
	schedule.TypeWeekly: {
		name: "weekly_entries",
		answers: `jsonb_build_object(
			'flatus_control', e.flatus_control,
			'liquid_stool_leakage', e.liquid_stool_leakage,
			'bowel_frequency', e.bowel_frequency,
			'repeat_bowel_opening', e.repeat_bowel_opening,
			'urgency_to_toilet', e.urgency_to_toilet,
			'total_score', e.total_score,
			'severity', e.severity,
			'raw_data', e.raw_data)`,
	},
	schedule.TypeDaily: {
		name: "daily_entries",
		answers: `jsonb_build_object(
			'bristol_scale', e.bristol_scale,
			'food_consumption', e.food_consumption,
			'drink_consumption', e.drink_consumption,
			'raw_data', e.raw_data)`,
	},
	schedule.TypeMonthly: {
		name: "monthly_entries",
		answers: `jsonb_build_object(
			'qol_score', e.qol_score,
			'raw_data', e.raw_data)`,
	},
	schedule.TypeEQ5D5L: {
		name: "eq5d5l_entries",
		answers: `jsonb_build_object(
			'mobility', e.mobility,
			'self_care', e.self_care,
			'usual_activities', e.usual_activities,
			'pain_discomfort', e.pain_discomfort,
			'anxiety_depression', e.anxiety_depression,
			'health_state', e.health_state,
			'vas', e.vas,
			'raw_data', e.raw_data)`,
	},
}

func tableFor(t schedule.Type) (tableSpec, error) {
	spec, ok := tables[t]
	if !ok {
		return tableSpec{}, fmt.Errorf("%w: %q", schedule.ErrUnknownType, t.String())
	}
	return spec, nil
}

type entryRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &entryRepoPG{pool: pool}
}

func (r *entryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// jsonParam renders v for a `$n::jsonb` placeholder. nil maps become {}.
func jsonParam(v interface{}) (string, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		if m == nil {
			return "{}", nil
		}
	case map[string]float64:
		if m == nil {
			return "{}", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *entryRepoPG) upsert(ctx context.Context, sql string, args ...interface{}) (uuid.UUID, error) {
	var id uuid.UUID
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *entryRepoPG) UpsertWeekly(ctx context.Context, patientID uuid.UUID, date civil.Date, e *WeeklyEntry) (uuid.UUID, error) {
	raw, err := jsonParam(e.RawData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode raw_data: %w", err)
	}
	return r.upsert(ctx, `
		INSERT INTO weekly_entries (id, patient_id, entry_date,
			flatus_control, liquid_stool_leakage, bowel_frequency,
			repeat_bowel_opening, urgency_to_toilet, total_score, severity, raw_data)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT (patient_id, entry_date) DO UPDATE SET
			flatus_control = EXCLUDED.flatus_control,
			liquid_stool_leakage = EXCLUDED.liquid_stool_leakage,
			bowel_frequency = EXCLUDED.bowel_frequency,
			repeat_bowel_opening = EXCLUDED.repeat_bowel_opening,
			urgency_to_toilet = EXCLUDED.urgency_to_toilet,
			total_score = EXCLUDED.total_score,
			severity = EXCLUDED.severity,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id`,
		uuid.New(), patientID, db.DateParam(date),
		e.FlatusControl, e.LiquidStoolLeakage, e.BowelFrequency,
		e.RepeatBowelOpening, e.UrgencyToToilet, e.TotalScore, string(e.Severity), raw)
}

func (r *entryRepoPG) UpsertDaily(ctx context.Context, patientID uuid.UUID, date civil.Date, e *DailyEntry) (uuid.UUID, error) {
	food, err := jsonParam(e.FoodConsumption)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode food_consumption: %w", err)
	}
	drink, err := jsonParam(e.DrinkConsumption)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode drink_consumption: %w", err)
	}
	raw, err := jsonParam(e.RawData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode raw_data: %w", err)
	}
	return r.upsert(ctx, `
		INSERT INTO daily_entries (id, patient_id, entry_date,
			bristol_scale, food_consumption, drink_consumption, raw_data)
		VALUES ($1, $2, $3::date, $4, $5::jsonb, $6::jsonb, $7::jsonb)
		ON CONFLICT (patient_id, entry_date) DO UPDATE SET
			bristol_scale = EXCLUDED.bristol_scale,
			food_consumption = EXCLUDED.food_consumption,
			drink_consumption = EXCLUDED.drink_consumption,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id`,
		uuid.New(), patientID, db.DateParam(date), e.BristolScale, food, drink, raw)
}

func (r *entryRepoPG) UpsertMonthly(ctx context.Context, patientID uuid.UUID, date civil.Date, e *MonthlyEntry) (uuid.UUID, error) {
	raw, err := jsonParam(e.RawData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode raw_data: %w", err)
	}
	return r.upsert(ctx, `
		INSERT INTO monthly_entries (id, patient_id, entry_date, qol_score, raw_data)
		VALUES ($1, $2, $3::date, $4, $5::jsonb)
		ON CONFLICT (patient_id, entry_date) DO UPDATE SET
			qol_score = EXCLUDED.qol_score,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id`,
		uuid.New(), patientID, db.DateParam(date), e.QOLScore, raw)
}

func (r *entryRepoPG) UpsertEQ5D5L(ctx context.Context, patientID uuid.UUID, date civil.Date, e *EQ5D5LEntry) (uuid.UUID, error) {
	raw, err := jsonParam(e.RawData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode raw_data: %w", err)
	}
	return r.upsert(ctx, `
		INSERT INTO eq5d5l_entries (id, patient_id, entry_date,
			mobility, self_care, usual_activities, pain_discomfort, anxiety_depression,
			health_state, vas, raw_data)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT (patient_id, entry_date) DO UPDATE SET
			mobility = EXCLUDED.mobility,
			self_care = EXCLUDED.self_care,
			usual_activities = EXCLUDED.usual_activities,
			pain_discomfort = EXCLUDED.pain_discomfort,
			anxiety_depression = EXCLUDED.anxiety_depression,
			health_state = EXCLUDED.health_state,
			vas = EXCLUDED.vas,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id`,
		uuid.New(), patientID, db.DateParam(date),
		e.Mobility, e.SelfCare, e.UsualActivities, e.PainDiscomfort, e.AnxietyDepression,
		e.HealthState, e.VAS, raw)
}

func (r *entryRepoPG) ListByPatient(ctx context.Context, patientCode string, t schedule.Type, limit, offset int) ([]*Record, int, error) {
	spec, err := tableFor(t)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM `+spec.name+` e
		JOIN patients p ON p.id = e.patient_id
		WHERE p.patient_code = $1`, patientCode).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT e.id, e.entry_date, `+spec.answers+`::text, e.created_at, e.updated_at
		FROM `+spec.name+` e
		JOIN patients p ON p.id = e.patient_id
		WHERE p.patient_code = $1
		ORDER BY e.entry_date DESC
		LIMIT $2 OFFSET $3`, patientCode, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec := Record{Type: t}
		var date pgtype.Date
		var answers string
		if err := rows.Scan(&rec.ID, &date, &answers, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		rec.EntryDate, _ = db.CivilDate(date)
		rec.Answers = json.RawMessage(answers)
		items = append(items, &rec)
	}
	return items, total, rows.Err()
}

func (r *entryRepoPG) LastEntryDate(ctx context.Context, patientCode string, t schedule.Type) (civil.Date, bool, error) {
	spec, err := tableFor(t)
	if err != nil {
		return civil.Date{}, false, err
	}
	var last pgtype.Date
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT MAX(e.entry_date) FROM `+spec.name+` e
		JOIN patients p ON p.id = e.patient_id
		WHERE p.patient_code = $1`, patientCode).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return civil.Date{}, false, nil
	}
	if err != nil {
		return civil.Date{}, false, err
	}
	d, ok := db.CivilDate(last)
	return d, ok, nil
}

func (r *entryRepoPG) HasEntryInWindow(ctx context.Context, patientCode string, t schedule.Type, w schedule.Window) (bool, error) {
	spec, err := tableFor(t)
	if err != nil {
		return false, err
	}
	var found bool
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM `+spec.name+` e
			JOIN patients p ON p.id = e.patient_id
			WHERE p.patient_code = $1
			  AND e.entry_date BETWEEN $2::date AND $3::date)`,
		patientCode, db.DateParam(w.Start), db.DateParam(w.End)).Scan(&found)
	return found, err
}

func (r *entryRepoPG) HasEntryOn(ctx context.Context, patientCode string, t schedule.Type, d civil.Date) (bool, error) {
	return r.HasEntryInWindow(ctx, patientCode, t, schedule.Window{Start: d, End: d})
}
