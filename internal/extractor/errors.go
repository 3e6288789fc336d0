package extractor

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ipanalyzer/internal/domain"
)

// RateLimitError indicates an extraction provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Both delta-seconds and HTTP-date forms are accepted; 0 means unknown.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return secs
	}
	if at, err := time.Parse(time.RFC1123, val); err == nil {
		if d := time.Until(at); d > 0 {
			return int(d.Round(time.Second).Seconds())
		}
	}
	return 0
}

// BlockedError indicates the provider refused the prompt.
type BlockedError struct {
	Provider string
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s blocked the prompt: %s", e.Provider, e.Reason)
}

// MalformedOutputError indicates the model answered with something other than
// the expected record list.
type MalformedOutputError struct {
	Err error
	Raw string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v (raw: %s)", e.Err, domain.Excerpt(e.Raw, 300))
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// AsExtractionError converts any provider error into a *domain.ExtractionError.
// Errors that already are ExtractionErrors pass through unchanged.
func AsExtractionError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		return err
	}

	var (
		rlErr        *RateLimitError
		blockedErr   *BlockedError
		malformedErr *MalformedOutputError
	)
	switch {
	case errors.As(err, &rlErr):
		return domain.NewExtractionError(domain.ExtractionRateLimited, provider, err)
	case errors.As(err, &blockedErr):
		return domain.NewExtractionError(domain.ExtractionBlocked, provider, err)
	case errors.As(err, &malformedErr):
		return domain.NewExtractionError(domain.ExtractionMalformedOutput, provider, err)
	default:
		return domain.NewExtractionError(domain.ExtractionUnreachable, provider, err)
	}
}
