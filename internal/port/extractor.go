package port

import (
	"context"

	"ipanalyzer/internal/domain"
)

// ExtractInput carries the text handed to the language model.
type ExtractInput struct {
	Text string
}

// ExtractOutput contains the raw records returned by an extractor.
type ExtractOutput struct {
	Records    []domain.RawRecord
	Provider   string
	ModelUsed  string
	PromptUsed string
}

// Extractor abstracts LLM-based (ip, timestamp) extraction. Implementations
// return a *domain.ExtractionError when no usable record list was produced.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
