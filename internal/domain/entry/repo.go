package entry

import (
	"context"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/lars/lars/internal/domain/schedule"
)

// Repository stores questionnaire entries. Upserts replace the row for the
// same patient and date; entries are never deleted.
type Repository interface {
	UpsertWeekly(ctx context.Context, patientID uuid.UUID, date civil.Date, e *WeeklyEntry) (uuid.UUID, error)
	UpsertDaily(ctx context.Context, patientID uuid.UUID, date civil.Date, e *DailyEntry) (uuid.UUID, error)
	UpsertMonthly(ctx context.Context, patientID uuid.UUID, date civil.Date, e *MonthlyEntry) (uuid.UUID, error)
	UpsertEQ5D5L(ctx context.Context, patientID uuid.UUID, date civil.Date, e *EQ5D5LEntry) (uuid.UUID, error)

	ListByPatient(ctx context.Context, patientCode string, t schedule.Type, limit, offset int) ([]*Record, int, error)

	LastEntryDate(ctx context.Context, patientCode string, t schedule.Type) (civil.Date, bool, error)
	HasEntryInWindow(ctx context.Context, patientCode string, t schedule.Type, w schedule.Window) (bool, error)
	HasEntryOn(ctx context.Context, patientCode string, t schedule.Type, d civil.Date) (bool, error)
}
