package analytics

import (
	"context"

	"github.com/nulzo/prism-relay/internal/store"
	"github.com/nulzo/prism-relay/internal/store/model"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
	requests *MockRequests
}

func newMockRepository() *MockRepository {
	return &MockRepository{requests: new(MockRequests)}
}

func (m *MockRepository) Requests() store.RequestRepository { return m.requests }

func (m *MockRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	m.Called(ctx)
	return fn(m)
}

func (m *MockRepository) Close() error { return nil }

type MockRequests struct {
	mock.Mock
}

func (m *MockRequests) Log(ctx context.Context, log *model.RequestLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *MockRequests) GetByID(ctx context.Context, id string) (*model.RequestLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RequestLog), args.Error(1)
}

func (m *MockRequests) GetRecent(ctx context.Context, providerID string, limit int) ([]model.RequestLog, error) {
	args := m.Called(ctx, providerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RequestLog), args.Error(1)
}

func (m *MockRequests) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DailyStats), args.Error(1)
}
