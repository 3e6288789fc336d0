package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// UTCLayout renders the UTC column.
	UTCLayout = time.RFC3339
	// ZonedLayout renders the target-zone column.
	ZonedLayout = "2006-01-02 15:04:05 MST-0700"
)

// RawRecord is one (ip, timestamp) claim returned by the extractor. Neither
// field is guaranteed to be valid and the same claim may appear more than once.
type RawRecord struct {
	IPText        string `json:"ip_address"`
	TimestampText string `json:"timestamp_str"`
	HasTimestamp  bool   `json:"-"`
}

// IPKey is a validated IP address in canonical textual form.
type IPKey string

func (k IPKey) String() string {
	return string(k)
}

// ParsedTimestamp is the normalized form of a timestamp string. Both the UTC
// and target-zone renderings derive from the single Instant.
type ParsedTimestamp struct {
	Status      TimestampStatus `json:"status"`
	Original    string          `json:"original"`
	Instant     time.Time       `json:"-"`
	Location    *time.Location  `json:"-"`
	AssumedZone bool            `json:"assumed_zone"`
	Reason      string          `json:"reason,omitempty"`
}

// OK reports whether the timestamp was parsed.
func (p ParsedTimestamp) OK() bool {
	return p.Status == TimestampParsed
}

// UTC returns the instant in UTC. The zero time is returned if not parsed.
func (p ParsedTimestamp) UTC() time.Time {
	if !p.OK() {
		return time.Time{}
	}
	return p.Instant.UTC()
}

// Local returns the instant in the target zone.
func (p ParsedTimestamp) Local() time.Time {
	if !p.OK() {
		return time.Time{}
	}
	if p.Location == nil {
		return p.Instant.UTC()
	}
	return p.Instant.In(p.Location)
}

// FormatUTC renders the UTC column value.
func (p ParsedTimestamp) FormatUTC() string {
	switch p.Status {
	case TimestampParsed:
		return p.UTC().Format(UTCLayout)
	case TimestampUnparseable:
		return UnknownTimestamp
	default:
		return NotAvailable
	}
}

// FormatLocal renders the target-zone column value.
func (p ParsedTimestamp) FormatLocal() string {
	switch p.Status {
	case TimestampParsed:
		return p.Local().Format(ZonedLayout)
	case TimestampUnparseable:
		return UnknownTimestamp
	default:
		return NotAvailable
	}
}

// IPInfo holds the geolocation and network attributes of a public IP.
type IPInfo struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Loc      string `json:"loc,omitempty"`
	Postal   string `json:"postal,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Org      string `json:"org,omitempty"`
	ASN      string `json:"asn,omitempty"`
	ISP      string `json:"isp,omitempty"`
}

// Location joins city, region and country, skipping empty parts.
func (i *IPInfo) Location() string {
	var parts []string
	for _, p := range []string{i.City, i.Region, i.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return NotAvailable
	}
	return strings.Join(parts, ", ")
}

// EnrichmentResult is the outcome of looking up one IPKey. Exactly one of
// Info and Failure is set.
type EnrichmentResult struct {
	IP      IPKey              `json:"ip"`
	Info    *IPInfo            `json:"info,omitempty"`
	Failure *EnrichmentFailure `json:"failure,omitempty"`
}

// NewEnrichmentSuccess wraps a successful lookup.
func NewEnrichmentSuccess(ip IPKey, info *IPInfo) *EnrichmentResult {
	return &EnrichmentResult{IP: ip, Info: info}
}

// NewEnrichmentFailure wraps a failed lookup.
func NewEnrichmentFailure(ip IPKey, reason FailureReason, detail string) *EnrichmentResult {
	return &EnrichmentResult{IP: ip, Failure: &EnrichmentFailure{Reason: reason, Detail: detail}}
}

// OK reports whether the lookup succeeded.
func (r *EnrichmentResult) OK() bool {
	return r != nil && r.Info != nil
}

// ISPOrError renders the ISP column, which doubles as the error column.
func (r *EnrichmentResult) ISPOrError() string {
	switch {
	case r == nil:
		return NotAvailable
	case r.Failure != nil:
		return "Error: " + r.Failure.Error()
	case r.Info.ISP != "":
		return r.Info.ISP
	default:
		return NotAvailable
	}
}

// LocationOrNA renders the location column.
func (r *EnrichmentResult) LocationOrNA() string {
	if !r.OK() {
		return NotAvailable
	}
	return r.Info.Location()
}

// HostnameOrNA renders the hostname column.
func (r *EnrichmentResult) HostnameOrNA() string {
	if !r.OK() || r.Info.Hostname == "" {
		return NotAvailable
	}
	return r.Info.Hostname
}

// AnalysisRecord is one row of the final report.
type AnalysisRecord struct {
	SequenceNumber        int               `json:"sequence_number"`
	IP                    IPKey             `json:"ip"`
	IPText                string            `json:"ip_text"`
	OriginalTimestampText string            `json:"original_timestamp"`
	Timestamp             ParsedTimestamp   `json:"timestamp"`
	Enrichment            *EnrichmentResult `json:"enrichment"`
	SourceOffset          int               `json:"source_offset"`
}

// DisplayIP returns the canonical key, or the raw text for invalid IPs.
func (r *AnalysisRecord) DisplayIP() string {
	if r.IP != "" {
		return string(r.IP)
	}
	return r.IPText
}

// MetadataPair is one user-supplied key=value annotation.
type MetadataPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RunMetadata describes one analysis run. It is created once at the start of
// a run and shared by every record; treat it as read-only.
type RunMetadata struct {
	RunID             uuid.UUID      `json:"run_id"`
	SourceFileName    string         `json:"source_file_name"`
	SourceFileSHA256  string         `json:"source_file_sha256"`
	SourceSizeBytes   int64          `json:"source_size_bytes"`
	AnalysisTimestamp time.Time      `json:"analysis_timestamp"`
	RequestedTimezone string         `json:"requested_timezone"`
	AppVersion        string         `json:"app_version"`
	UserMetadata      []MetadataPair `json:"user_metadata"`
}

// reservedMetadataKeys are the RunMetadata field names; user pairs may not
// reuse them because reports flatten both into one key space.
var reservedMetadataKeys = map[string]bool{
	"run_id":             true,
	"source_file_name":   true,
	"source_file_sha256": true,
	"source_size_bytes":  true,
	"analysis_timestamp": true,
	"requested_timezone": true,
	"app_version":        true,
}

// IsReservedMetadataKey reports whether key names a run field.
func IsReservedMetadataKey(key string) bool {
	return reservedMetadataKeys[key]
}

// Pairs returns a copy of the user metadata in insertion order.
func (m RunMetadata) Pairs() []MetadataPair {
	out := make([]MetadataPair, len(m.UserMetadata))
	copy(out, m.UserMetadata)
	return out
}

// RunStats summarizes a run for logs and report footers.
type RunStats struct {
	Duration              time.Duration         `json:"duration_ns"`
	ExtractionProvider    string                `json:"extraction_provider"`
	ExtractionModel       string                `json:"extraction_model"`
	RawRecords            int                   `json:"raw_records"`
	Records               int                   `json:"records"`
	UniqueIPs             int                   `json:"unique_ips"`
	Enriched              int                   `json:"enriched"`
	EnrichmentFailures    map[FailureReason]int `json:"enrichment_failures"`
	InvalidIPs            int                   `json:"invalid_ips"`
	UnparseableTimestamps int                   `json:"unparseable_timestamps"`
	AssumedZoneTimestamps int                   `json:"assumed_zone_timestamps"`
}

// Report is the input contract of every renderer.
type Report struct {
	Metadata RunMetadata      `json:"metadata"`
	Records  []AnalysisRecord `json:"results"`
	Stats    RunStats         `json:"stats"`
}
