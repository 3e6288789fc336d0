package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/storage"
)

// MockDeliveryService is a mock implementation of service.DeliveryService.
type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) Render(rep *domain.Report, formats []string) ([]storage.Artifact, error) {
	args := m.Called(rep, formats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Artifact), args.Error(1)
}

func (m *MockDeliveryService) Publish(ctx context.Context, rep *domain.Report, artifacts []storage.Artifact) ([]storage.Link, error) {
	args := m.Called(ctx, rep, artifacts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Link), args.Error(1)
}

func (m *MockDeliveryService) Notify(ctx context.Context, rep *domain.Report, links []storage.Link) error {
	args := m.Called(ctx, rep, links)
	return args.Error(0)
}
