package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/port"
)

// Limited short-circuits empty input and rejects input above the configured
// size before any provider is called.
type Limited struct {
	inner    port.Extractor
	maxChars int
}

// NewLimited wraps inner. maxChars <= 0 disables the size check.
func NewLimited(inner port.Extractor, maxChars int) *Limited {
	return &Limited{inner: inner, maxChars: maxChars}
}

func (l *Limited) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return &port.ExtractOutput{Records: []domain.RawRecord{}}, nil
	}
	if l.maxChars > 0 {
		if n := utf8.RuneCountInString(input.Text); n > l.maxChars {
			return nil, domain.NewExtractionError(domain.ExtractionInputTooLarge, "",
				fmt.Errorf("input has %d characters, limit is %d", n, l.maxChars))
		}
	}
	return l.inner.Extract(ctx, input)
}

// Retrying retries transient provider failures and converts every error
// into a *domain.ExtractionError.
type Retrying struct {
	inner      port.Extractor
	provider   string
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewRetrying wraps inner with up to maxRetries additional attempts.
func NewRetrying(inner port.Extractor, provider string, maxRetries int, log zerolog.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{
		inner:      inner,
		provider:   provider,
		maxRetries: maxRetries,
		backoff:    2 * time.Second,
		log:        log,
	}
}

// WithBackoff sets the base delay between attempts.
func (r *Retrying) WithBackoff(d time.Duration) *Retrying {
	r.backoff = d
	return r
}

func (r *Retrying) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff * time.Duration(attempt)
			r.log.Warn().Str("provider", r.provider).Int("attempt", attempt+1).Dur("delay", delay).Err(lastErr).
				Msg("extractor.Retrying: retrying extraction")
			select {
			case <-ctx.Done():
				return nil, AsExtractionError(r.provider, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr))
			case <-time.After(delay):
			}
		}

		out, err := r.inner.Extract(ctx, input)
		if err == nil {
			if out.Provider == "" {
				out.Provider = r.provider
			}
			return out, nil
		}
		lastErr = err
		if !transient(ctx, err) {
			break
		}
	}
	return nil, AsExtractionError(r.provider, lastErr)
}

// transient reports whether another attempt could succeed.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var (
		rlErr        *RateLimitError
		blockedErr   *BlockedError
		malformedErr *MalformedOutputError
		extErr       *domain.ExtractionError
	)
	switch {
	case errors.As(err, &rlErr), errors.As(err, &blockedErr), errors.As(err, &malformedErr), errors.As(err, &extErr):
		return false
	case errors.Is(err, domain.ErrCredentialsRejected):
		return false
	default:
		return true
	}
}
