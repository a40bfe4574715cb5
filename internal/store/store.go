package store

import (
	"context"

	"github.com/nulzo/prism-relay/internal/store/model"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Requests() RequestRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RequestRepository interface {
	// Log stores a finished provider call.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetByID returns a single request log.
	GetByID(ctx context.Context, id string) (*model.RequestLog, error)
	// GetRecent returns the last N logs, optionally for one provider.
	GetRecent(ctx context.Context, providerID string, limit int) ([]model.RequestLog, error)
	// GetDailyStats returns per-day, per-provider aggregates for the last N days.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
