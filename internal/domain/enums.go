package domain

// TimestampStatus records what the normalizer could make of a timestamp string.
type TimestampStatus string

const (
	TimestampParsed      TimestampStatus = "parsed"
	TimestampAbsent      TimestampStatus = "absent"
	TimestampUnparseable TimestampStatus = "unparseable"
)

// FailureReason classifies why an IP could not be enriched.
type FailureReason string

const (
	ReasonNotPublic     FailureReason = "not_public"
	ReasonRateLimited   FailureReason = "rate_limited"
	ReasonUpstreamError FailureReason = "upstream_error"
	ReasonTimeout       FailureReason = "timeout"
	ReasonInvalidIP     FailureReason = "invalid_ip"
)

// ExtractionFailureKind classifies fatal extraction errors.
type ExtractionFailureKind string

const (
	ExtractionUnreachable     ExtractionFailureKind = "unreachable"
	ExtractionMalformedOutput ExtractionFailureKind = "malformed_output"
	ExtractionBlocked         ExtractionFailureKind = "blocked"
	ExtractionRateLimited     ExtractionFailureKind = "rate_limited"
	ExtractionInputTooLarge   ExtractionFailureKind = "input_too_large"
)

// SourceKind represents the supported raw text source formats.
type SourceKind string

const (
	SourceText SourceKind = "txt"
	SourceLog  SourceKind = "log"
	SourceCSV  SourceKind = "csv"
	SourceDOCX SourceKind = "docx"
)

// AllowedExtensions maps file extensions (without dot) to SourceKind.
var AllowedExtensions = map[string]SourceKind{
	"txt":  SourceText,
	"text": SourceText,
	"log":  SourceLog,
	"csv":  SourceCSV,
	"docx": SourceDOCX,
}

// AllowedContentTypes maps detected MIME types to SourceKind.
var AllowedContentTypes = map[string]SourceKind{
	"text/plain": SourceText,
	"text/csv":   SourceCSV,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": SourceDOCX,
}

const (
	// NotAvailable is rendered for absent values.
	NotAvailable = "N/A"
	// UnknownTimestamp is rendered for timestamps that could not be parsed.
	UnknownTimestamp = "unknown"
)
