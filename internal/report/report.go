// Package report holds what every renderer shares: the registry of output
// formats, the flattened row model and the table layout.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/port"
)

var (
	mu        sync.RWMutex
	renderers = map[string]port.ReportRenderer{}
)

// Register makes a renderer available under its Name. It is called from the
// init function of each renderer package.
func Register(r port.ReportRenderer) {
	mu.Lock()
	defer mu.Unlock()
	renderers[strings.ToLower(r.Name())] = r
}

// Get returns the renderer registered for format.
func Get(format string) (port.ReportRenderer, error) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := renderers[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", domain.ErrUnsupportedFormat, format, strings.Join(formatsLocked(), ", "))
	}
	return r, nil
}

// Formats returns the registered format names in sorted order.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	return formatsLocked()
}

func formatsLocked() []string {
	names := make([]string, 0, len(renderers))
	for name := range renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up every format, dropping duplicates while keeping order.
func Resolve(formats []string) ([]port.ReportRenderer, error) {
	seen := map[string]bool{}
	out := make([]port.ReportRenderer, 0, len(formats))
	for _, f := range formats {
		r, err := Get(f)
		if err != nil {
			return nil, err
		}
		if seen[r.Name()] {
			continue
		}
		seen[r.Name()] = true
		out = append(out, r)
	}
	return out, nil
}

// Bytes renders rep into memory.
func Bytes(r port.ReportRenderer, rep *domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, rep); err != nil {
		return nil, fmt.Errorf("rendering %s report: %w", r.Name(), err)
	}
	return buf.Bytes(), nil
}

// Column is one column of the fixed-width table used by the text and PDF
// renderers. Width is in characters.
type Column struct {
	Title string
	Width int
}

// Columns returns the table layout; zone labels the target-zone column.
func Columns(zone string) []Column {
	if zone == "" {
		zone = "UTC"
	}
	return []Column{
		{Title: "No.", Width: 4},
		{Title: "IP Address", Width: 38},
		{Title: "Timestamp (UTC)", Width: 23},
		{Title: "Timestamp (" + zone + ")", Width: 28},
		{Title: "ISP / Error", Width: 30},
		{Title: "Location", Width: 30},
		{Title: "Hostname", Width: 24},
	}
}

// Row is an AnalysisRecord flattened to strings. Absent values are N/A.
type Row struct {
	Sequence          int    `json:"sequence_number"`
	IP                string `json:"ip_address"`
	IPText            string `json:"ip_text"`
	OriginalTimestamp string `json:"original_timestamp"`
	TimestampUTC      string `json:"timestamp_utc"`
	TimestampLocal    string `json:"timestamp_converted"`
	TimestampStatus   string `json:"timestamp_status"`
	AssumedZone       bool   `json:"timestamp_assumed_zone"`
	ISPOrError        string `json:"isp"`
	ASN               string `json:"asn"`
	Org               string `json:"org"`
	City              string `json:"city"`
	Region            string `json:"region"`
	Country           string `json:"country"`
	Location          string `json:"location"`
	Hostname          string `json:"hostname"`
	ErrorReason       string `json:"error_reason,omitempty"`
	ErrorDetail       string `json:"error_detail,omitempty"`
	SourceOffset      int    `json:"source_offset"`
}

// Cells returns the values of the table columns, in Columns order.
func (r Row) Cells() []string {
	return []string{
		strconv.Itoa(r.Sequence),
		r.IP,
		r.TimestampUTC,
		r.TimestampLocal,
		r.ISPOrError,
		r.Location,
		r.Hostname,
	}
}

// ExportHeader names every Row field, in Values order. Tabular exports
// (CSV, XLSX) carry all of them.
var ExportHeader = []string{
	"Sequence",
	"IP Address",
	"IP Text",
	"Original Timestamp",
	"Timestamp (UTC)",
	"Timestamp (Converted)",
	"Timestamp Status",
	"Assumed Zone",
	"ISP / Error",
	"ASN",
	"Org",
	"City",
	"Region",
	"Country",
	"Location",
	"Hostname",
	"Error Reason",
	"Error Detail",
	"Source Offset",
}

// Values returns every field of r, numbers kept numeric.
func (r Row) Values() []any {
	return []any{
		r.Sequence,
		r.IP,
		r.IPText,
		r.OriginalTimestamp,
		r.TimestampUTC,
		r.TimestampLocal,
		r.TimestampStatus,
		r.AssumedZone,
		r.ISPOrError,
		r.ASN,
		r.Org,
		r.City,
		r.Region,
		r.Country,
		r.Location,
		r.Hostname,
		r.ErrorReason,
		r.ErrorDetail,
		r.SourceOffset,
	}
}

// Rows flattens the records of rep.
func Rows(rep *domain.Report) []Row {
	rows := make([]Row, 0, len(rep.Records))
	for i := range rep.Records {
		rows = append(rows, NewRow(&rep.Records[i]))
	}
	return rows
}

// NewRow flattens a single record.
func NewRow(rec *domain.AnalysisRecord) Row {
	original := rec.OriginalTimestampText
	if original == "" {
		original = domain.NotAvailable
	}
	row := Row{
		Sequence:          rec.SequenceNumber,
		IP:                rec.DisplayIP(),
		IPText:            rec.IPText,
		OriginalTimestamp: original,
		TimestampUTC:      rec.Timestamp.FormatUTC(),
		TimestampLocal:    rec.Timestamp.FormatLocal(),
		TimestampStatus:   string(rec.Timestamp.Status),
		AssumedZone:       rec.Timestamp.AssumedZone,
		ISPOrError:        rec.Enrichment.ISPOrError(),
		Location:          rec.Enrichment.LocationOrNA(),
		Hostname:          rec.Enrichment.HostnameOrNA(),
		ASN:               domain.NotAvailable,
		Org:               domain.NotAvailable,
		City:              domain.NotAvailable,
		Region:            domain.NotAvailable,
		Country:           domain.NotAvailable,
		SourceOffset:      rec.SourceOffset,
	}

	switch res := rec.Enrichment; {
	case res.OK():
		row.ASN = orNA(res.Info.ASN)
		row.Org = orNA(res.Info.Org)
		row.City = orNA(res.Info.City)
		row.Region = orNA(res.Info.Region)
		row.Country = orNA(res.Info.Country)
	case res != nil && res.Failure != nil:
		row.ErrorReason = string(res.Failure.Reason)
		row.ErrorDetail = res.Failure.Detail
	}
	return row
}

// Field is a labelled metadata value for report headers.
type Field struct {
	Key   string
	Label string
	Value string
}

// MetadataFields returns the run metadata in display order: the fixed run
// fields first, then the user pairs in insertion order. User pairs that reuse
// a run field key are dropped.
func MetadataFields(m domain.RunMetadata) []Field {
	fields := []Field{
		{Key: "run_id", Label: "Run ID", Value: m.RunID.String()},
		{Key: "source_file_name", Label: "Source File", Value: m.SourceFileName},
		{Key: "source_file_sha256", Label: "Source File SHA-256", Value: m.SourceFileSHA256},
		{Key: "source_size_bytes", Label: "Source Size", Value: humanize.Bytes(uint64(max(m.SourceSizeBytes, 0)))},
		{Key: "analysis_timestamp", Label: "Analysis Time (UTC)", Value: m.AnalysisTimestamp.UTC().Format(domain.UTCLayout)},
		{Key: "requested_timezone", Label: "Requested Timezone", Value: m.RequestedTimezone},
		{Key: "app_version", Label: "Application Version", Value: m.AppVersion},
	}
	for _, p := range m.Pairs() {
		if domain.IsReservedMetadataKey(p.Key) {
			continue
		}
		fields = append(fields, Field{Key: p.Key, Label: DisplayKey(p.Key), Value: p.Value})
	}
	return fields
}

var title = cases.Title(language.Und)

// DisplayKey turns a normalized metadata key into a label:
// "lead_investigator" becomes "Lead Investigator".
func DisplayKey(key string) string {
	return title.String(strings.ReplaceAll(key, "_", " "))
}

// Truncate shortens s to width runes, ending with "..." when cut.
func Truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 3 {
		return string([]rune(s)[:width])
	}
	return string([]rune(s)[:width-3]) + "..."
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return domain.NotAvailable
	}
	return s
}
