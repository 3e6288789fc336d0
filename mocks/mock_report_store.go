package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"ipanalyzer/internal/port"
)

// MockReportStore is a mock implementation of port.ReportStore.
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) PutReport(ctx context.Context, obj port.ReportObject) (*port.StoredReport, error) {
	args := m.Called(ctx, obj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.StoredReport), args.Error(1)
}

func (m *MockReportStore) DownloadURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockReportStore) CheckBucket(ctx context.Context, bucket string) error {
	return m.Called(ctx, bucket).Error(0)
}
