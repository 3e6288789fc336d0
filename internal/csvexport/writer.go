// Package csvexport writes reports as CSV with a commented metadata header.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/report"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row.
var columns = report.ExportHeader

func init() {
	report.Register(Renderer{})
}

// Renderer adapts Writer to the report registry.
type Renderer struct{}

func (Renderer) Name() string        { return "csv" }
func (Renderer) Extension() string   { return ".csv" }
func (Renderer) ContentType() string { return "text/csv; charset=utf-8" }

// Render writes the BOM, the metadata comment block, the header and one row
// per record.
func (Renderer) Render(w io.Writer, rep *domain.Report) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := NewWriter(w)
	if err := cw.WriteMetadata(rep.Metadata); err != nil {
		return err
	}
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteRows(report.Rows(rep)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Writer wraps csv.Writer for exporting report rows as CSV.
type Writer struct {
	out io.Writer
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w, csv: csv.NewWriter(w)}
}

// WriteMetadata writes the run metadata as "# Label: value" comment lines.
// It must be called before any row is written.
func (w *Writer) WriteMetadata(m domain.RunMetadata) error {
	var b strings.Builder
	b.WriteString("# --- Metadata ---\n")
	for _, f := range report.MetadataFields(m) {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "# %s: %s\n", f.Label, oneLine(f.Value))
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRows writes a batch of rows.
func (w *Writer) WriteRows(rows []report.Row) error {
	for i := range rows {
		if err := w.csv.Write(rowToRecord(&rows[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// rowToRecord converts a single row to a slice matching columns.
func rowToRecord(r *report.Row) []string {
	return []string{
		strconv.Itoa(r.Sequence),
		r.IP,
		r.IPText,
		r.OriginalTimestamp,
		r.TimestampUTC,
		r.TimestampLocal,
		r.TimestampStatus,
		formatBool(r.AssumedZone),
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
		strconv.Itoa(r.SourceOffset),
	}
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a source file name for use in output paths and
// Content-Disposition. Replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "report"
	}
	return s
}

// BuildBaseName returns the extension-less report file name for a run.
// Format: {sanitized_source_stem}_ip_report_{YYYYMMDD_HHMMSS}
func BuildBaseName(sourceName string, at time.Time) string {
	stem := strings.TrimSuffix(sourceName, extOf(sourceName))
	return fmt.Sprintf("%s_ip_report_%s", SanitizeFilename(stem), at.UTC().Format("20060102_150405"))
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
