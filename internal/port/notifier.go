package port

import (
	"context"

	"ipanalyzer/internal/domain"
)

// RunSummary is what a notifier tells recipients about a finished run.
type RunSummary struct {
	Metadata    domain.RunMetadata
	Stats       domain.RunStats
	ReportLinks map[string]string
}

// Notifier defines the contract for announcing finished runs.
type Notifier interface {
	SendRunSummary(ctx context.Context, recipients []string, summary RunSummary) error
}
