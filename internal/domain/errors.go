package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrExtraction          = errors.New("extraction failed")
	ErrInvalidIP           = errors.New("invalid ip address")
	ErrSourceUnreadable    = errors.New("source file could not be read")
	ErrUnsupportedSource   = errors.New("unsupported source file type")
	ErrSourceTooLarge      = errors.New("source exceeds maximum allowed size")
	ErrEmptySource         = errors.New("no source text provided")
	ErrInvalidTimezone     = errors.New("invalid timezone")
	ErrInvalidMetadata     = errors.New("invalid metadata pair")
	ErrMissingCredentials  = errors.New("missing api credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnsupportedFormat   = errors.New("unsupported report format")
	ErrPublishFailed       = errors.New("report upload to storage failed")
	ErrCredentialsRejected = errors.New("api credentials rejected")
)

// ExtractionError is the fatal error of a run: the language model could not
// produce a usable list of records.
type ExtractionError struct {
	Kind     ExtractionFailureKind
	Provider string
	Err      error
}

// NewExtractionError creates an ExtractionError of the given kind.
func NewExtractionError(kind ExtractionFailureKind, provider string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Provider: provider, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s, %s): %v", e.Kind, e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports ErrExtraction as matching every ExtractionError.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// InvalidIPError is returned when a candidate string is not an IPv4 or IPv6 address.
type InvalidIPError struct {
	Text string
}

func (e *InvalidIPError) Error() string {
	return fmt.Sprintf("invalid ip address %q", e.Text)
}

func (e *InvalidIPError) Is(target error) bool {
	return target == ErrInvalidIP
}

// EnrichmentFailure explains why an IP carries no enrichment data. It is a
// per-IP outcome, never a run-level error.
type EnrichmentFailure struct {
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

func (f *EnrichmentFailure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s (%s)", f.Reason, f.Detail)
}

// Excerpt shortens s to at most maxLen bytes for error messages, cutting on a
// rune boundary and marking the cut with "...".
func Excerpt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
