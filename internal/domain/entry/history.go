package entry

import (
	"context"

	"github.com/golang-sql/civil"

	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/domain/schedule"
)

// History is the scheduler's view of stored entries: enrollment comes from
// the patient registry, everything else from the entry tables.
type History struct {
	patients patient.Repository
	entries  Repository
}

var _ schedule.EntryStore = (*History)(nil)

func NewHistory(patients patient.Repository, entries Repository) *History {
	return &History{patients: patients, entries: entries}
}

func (h *History) EnrollmentDate(ctx context.Context, patientCode string) (civil.Date, bool, error) {
	return h.patients.EnrollmentDate(ctx, patientCode)
}

func (h *History) LastEntryDate(ctx context.Context, patientCode string, t schedule.Type) (civil.Date, bool, error) {
	return h.entries.LastEntryDate(ctx, patientCode, t)
}

func (h *History) HasEntryInWindow(ctx context.Context, patientCode string, t schedule.Type, w schedule.Window) (bool, error) {
	return h.entries.HasEntryInWindow(ctx, patientCode, t, w)
}

func (h *History) HasEntryOn(ctx context.Context, patientCode string, t schedule.Type, d civil.Date) (bool, error) {
	return h.entries.HasEntryOn(ctx, patientCode, t, d)
}
