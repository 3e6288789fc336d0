package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"ipanalyzer/internal/domain"
)

// ErrNotPublic is returned by a lookup backend that recognises the address
// as private or reserved.
var ErrNotPublic = errors.New("address is not publicly routable")

// LookupError is a non-2xx answer from the lookup service.
type LookupError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *LookupError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lookup service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("lookup service returned status %d: %s", e.StatusCode, e.Body)
}

// outcome is the classification of one failed upstream attempt.
type outcome struct {
	reason     domain.FailureReason
	retryable  bool
	retryAfter time.Duration
}

func classify(ctx context.Context, err error) outcome {
	if errors.Is(err, ErrNotPublic) {
		return outcome{reason: domain.ReasonNotPublic}
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return outcome{reason: domain.ReasonTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcome{reason: domain.ReasonTimeout}
	}

	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		switch {
		case lookupErr.StatusCode == http.StatusTooManyRequests:
			return outcome{reason: domain.ReasonRateLimited, retryable: true, retryAfter: lookupErr.RetryAfter}
		case lookupErr.StatusCode >= 500:
			return outcome{reason: domain.ReasonUpstreamError, retryable: true, retryAfter: lookupErr.RetryAfter}
		}
	}
	return outcome{reason: domain.ReasonUpstreamError}
}

// ParseRetryAfter reads a Retry-After header given either as delta-seconds
// or as an HTTP date. Zero means the header was absent or unusable.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
