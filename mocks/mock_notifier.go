package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ipanalyzer/internal/port"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendRunSummary(ctx context.Context, recipients []string, summary port.RunSummary) error {
	args := m.Called(ctx, recipients, summary)
	return args.Error(0)
}
