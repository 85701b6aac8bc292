package service

import (
	"context"
	"fmt"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/pkg/e"
	"roadwatch/pkg/validator"
)

type statsService struct {
	repo  StatsRepository
	clock Clock
}

func NewStatsService(repo StatsRepository, clock Clock) StatsService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &statsService{repo: repo, clock: clock}
}

func (s *statsService) GetStats(ctx context.Context, req domain.StatsRequest) (*domain.IncidentStats, error) {
	const op = "service.StatsService.GetStats"

	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	stats, err := s.repo.Stats(ctx, now, now.Add(-time.Duration(req.Minutes)*time.Minute))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return stats, nil
}
