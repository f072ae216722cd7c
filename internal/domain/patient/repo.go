package patient

import (
	"context"

	"github.com/golang-sql/civil"
)

type Repository interface {
	// Upsert creates the patient enrolled on enrolledOn, or returns the
	// existing row unchanged.
	Upsert(ctx context.Context, code string, enrolledOn civil.Date) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	EnrollmentDate(ctx context.Context, code string) (civil.Date, bool, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
