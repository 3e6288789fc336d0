package extractor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/extractor"
	"ipanalyzer/internal/port"
	"ipanalyzer/mocks"
)

func recordsOutput(provider string, records ...domain.RawRecord) *port.ExtractOutput {
	return &port.ExtractOutput{
		Records:    records,
		Provider:   provider,
		ModelUsed:  provider + "-model",
		PromptUsed: "test prompt",
	}
}

func rec(ip, ts string) domain.RawRecord {
	return domain.RawRecord{IPText: ip, TimestampText: ts, HasTimestamp: ts != ""}
}

func TestLimited_BlankInputSkipsProvider(t *testing.T) {
	inner := new(mocks.MockExtractor)
	l := extractor.NewLimited(inner, 100)

	out, err := l.Extract(context.Background(), port.ExtractInput{Text: "  \n\t "})

	require.NoError(t, err)
	assert.Empty(t, out.Records)
	inner.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestLimited_InputTooLarge(t *testing.T) {
	inner := new(mocks.MockExtractor)
	l := extractor.NewLimited(inner, 10)

	out, err := l.Extract(context.Background(), port.ExtractInput{Text: strings.Repeat("ü", 11)})

	assert.Nil(t, out)
	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionInputTooLarge, extErr.Kind)
	inner.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestLimited_WithinLimitDelegates(t *testing.T) {
	inner := new(mocks.MockExtractor)
	input := port.ExtractInput{Text: "8.8.8.8"}
	inner.On("Extract", mock.Anything, input).Return(recordsOutput("gemini", rec("8.8.8.8", "")), nil)

	out, err := extractor.NewLimited(inner, 0).Extract(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, out.Records, 1)
	inner.AssertExpectations(t)
}

func TestRetrying_RetriesTransientFailure(t *testing.T) {
	inner := new(mocks.MockExtractor)
	input := port.ExtractInput{Text: "log"}
	inner.On("Extract", mock.Anything, input).Return(nil, errors.New("connection reset")).Once()
	inner.On("Extract", mock.Anything, input).Return(&port.ExtractOutput{Records: []domain.RawRecord{}}, nil).Once()

	r := extractor.NewRetrying(inner, "gemini", 2, zerolog.Nop()).WithBackoff(time.Millisecond)
	out, err := r.Extract(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "gemini", out.Provider)
	inner.AssertNumberOfCalls(t, "Extract", 2)
}

func TestRetrying_ExhaustedBecomesUnreachable(t *testing.T) {
	inner := new(mocks.MockExtractor)
	input := port.ExtractInput{Text: "log"}
	inner.On("Extract", mock.Anything, input).Return(nil, errors.New("connection refused"))

	r := extractor.NewRetrying(inner, "claude", 2, zerolog.Nop()).WithBackoff(time.Millisecond)
	_, err := r.Extract(context.Background(), input)

	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionUnreachable, extErr.Kind)
	assert.Equal(t, "claude", extErr.Provider)
	inner.AssertNumberOfCalls(t, "Extract", 3)
}

func TestRetrying_DoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.ExtractionFailureKind
	}{
		{"malformed", &extractor.MalformedOutputError{Err: errors.New("not json"), Raw: "hello"}, domain.ExtractionMalformedOutput},
		{"blocked", &extractor.BlockedError{Provider: "gemini", Reason: "SAFETY"}, domain.ExtractionBlocked},
		{"rate limited", extractor.NewRateLimitError("gemini", errors.New("429"), 1), domain.ExtractionRateLimited},
		{"bad key", fmt.Errorf("%w: status 401", domain.ErrCredentialsRejected), domain.ExtractionUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := new(mocks.MockExtractor)
			input := port.ExtractInput{Text: "log"}
			inner.On("Extract", mock.Anything, input).Return(nil, tt.err)

			r := extractor.NewRetrying(inner, "gemini", 3, zerolog.Nop()).WithBackoff(time.Millisecond)
			_, err := r.Extract(context.Background(), input)

			var extErr *domain.ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, tt.kind, extErr.Kind)
			inner.AssertNumberOfCalls(t, "Extract", 1)
		})
	}
}

func TestRetrying_StopsOnCancelledContext(t *testing.T) {
	inner := new(mocks.MockExtractor)
	input := port.ExtractInput{Text: "log"}
	ctx, cancel := context.WithCancel(context.Background())
	inner.On("Extract", mock.Anything, input).Run(func(mock.Arguments) { cancel() }).Return(nil, errors.New("timeout"))

	r := extractor.NewRetrying(inner, "openai", 5, zerolog.Nop()).WithBackoff(time.Hour)
	_, err := r.Extract(ctx, input)

	assert.True(t, errors.Is(err, domain.ErrExtraction))
	inner.AssertNumberOfCalls(t, "Extract", 1)
}
