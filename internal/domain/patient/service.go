package patient

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetPatient(ctx context.Context, rawCode string) (*Patient, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return items, total, nil
}
