package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ipanalyzer/internal/domain"
)

// MockIPLookup is a mock implementation of port.IPLookup.
type MockIPLookup struct {
	mock.Mock
}

func (m *MockIPLookup) Lookup(ctx context.Context, ip domain.IPKey) (*domain.IPInfo, error) {
	args := m.Called(ctx, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IPInfo), args.Error(1)
}
