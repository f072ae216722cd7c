package entry

import (
	"context"
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/domain/schedule"
	"github.com/lars/lars/internal/platform/db"
)

type Service struct {
	patients patient.Repository
	entries  Repository
	tx       db.Transactor
	today    func() civil.Date
	logger   zerolog.Logger
}

// NewService wires ingestion. today supplies the server calendar date used
// for defaulted entry dates and for enrollment on first contact.
func NewService(patients patient.Repository, entries Repository, tx db.Transactor, today func() civil.Date, logger zerolog.Logger) *Service {
	return &Service{patients: patients, entries: entries, tx: tx, today: today, logger: logger}
}

type saveFunc func(ctx context.Context, patientID uuid.UUID, date civil.Date) (uuid.UUID, error)

// submit upserts the patient and the entry in one transaction. The patient
// keeps the enrollment date of its first submission.
func (s *Service) submit(ctx context.Context, rawCode string, t schedule.Type, rawDate string, payload interface{}, save saveFunc) (*SubmitResponse, error) {
	code, err := patient.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(payload); err != nil {
		return nil, err
	}

	today := s.today()
	date := today
	if rawDate != "" {
		if date, err = civil.ParseDate(rawDate); err != nil {
			return nil, &ValidationError{Fields: map[string]string{"entry_date": "must be a date formatted YYYY-MM-DD"}}
		}
	}

	var id uuid.UUID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.Upsert(ctx, code, today)
		if err != nil {
			return fmt.Errorf("upsert patient: %w", err)
		}
		id, err = save(ctx, p.ID, date)
		if err != nil {
			return fmt.Errorf("upsert %s entry: %w", t, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("patient_code", code).
		Str("type", t.String()).
		Str("entry_date", date.String()).
		Str("id", id.String()).
		Msg("entry upserted")
	return &SubmitResponse{Status: "ok", ID: id}, nil
}

func (s *Service) SubmitWeekly(ctx context.Context, code string, p *WeeklyPayload) (*SubmitResponse, error) {
	return s.submit(ctx, code, schedule.TypeWeekly, p.EntryDate, p,
		func(ctx context.Context, patientID uuid.UUID, date civil.Date) (uuid.UUID, error) {
			return s.entries.UpsertWeekly(ctx, patientID, date, p.entry())
		})
}

func (s *Service) SubmitDaily(ctx context.Context, code string, p *DailyPayload) (*SubmitResponse, error) {
	return s.submit(ctx, code, schedule.TypeDaily, p.EntryDate, p,
		func(ctx context.Context, patientID uuid.UUID, date civil.Date) (uuid.UUID, error) {
			return s.entries.UpsertDaily(ctx, patientID, date, p.entry())
		})
}

func (s *Service) SubmitMonthly(ctx context.Context, code string, p *MonthlyPayload) (*SubmitResponse, error) {
	return s.submit(ctx, code, schedule.TypeMonthly, p.EntryDate, p,
		func(ctx context.Context, patientID uuid.UUID, date civil.Date) (uuid.UUID, error) {
			return s.entries.UpsertMonthly(ctx, patientID, date, p.entry())
		})
}

func (s *Service) SubmitEQ5D5L(ctx context.Context, code string, p *EQ5D5LPayload) (*SubmitResponse, error) {
	return s.submit(ctx, code, schedule.TypeEQ5D5L, p.EntryDate, p,
		func(ctx context.Context, patientID uuid.UUID, date civil.Date) (uuid.UUID, error) {
			return s.entries.UpsertEQ5D5L(ctx, patientID, date, p.entry())
		})
}

// ListEntries returns one page of a patient's entries of type t, newest
// first. An unknown patient is patient.ErrNotFound.
func (s *Service) ListEntries(ctx context.Context, rawCode string, t schedule.Type, limit, offset int) ([]*Record, int, error) {
	code, err := patient.NormalizeCode(rawCode)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.patients.GetByCode(ctx, code); err != nil {
		return nil, 0, err
	}
	items, total, err := s.entries.ListByPatient(ctx, code, t, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s entries: %w", t, err)
	}
	return items, total, nil
}
