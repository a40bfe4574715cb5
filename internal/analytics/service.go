package analytics

import (
	"context"

	"github.com/nulzo/prism-relay/internal/store"
	"github.com/nulzo/prism-relay/internal/store/model"
)

const (
	defaultDays = 7
	maxDays     = 90
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
	GetRecent(ctx context.Context, providerID string, limit int) ([]model.RequestLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

// GetUsageOverview clamps days to [1, 90], defaulting to the last week.
func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	stats, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []model.DailyStats{}
	}
	return stats, nil
}

func (s *service) GetRecent(ctx context.Context, providerID string, limit int) ([]model.RequestLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	logs, err := s.repo.Requests().GetRecent(ctx, providerID, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.RequestLog{}
	}
	return logs, nil
}
