// Package text renders reports as a fixed-width plain text table.
package text

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/report"
)

const (
	minWidth  = 180
	separator = " | "
)

func init() {
	report.Register(Renderer{})
}

// Renderer writes the console/text report.
type Renderer struct{}

func (Renderer) Name() string        { return "txt" }
func (Renderer) Extension() string   { return ".txt" }
func (Renderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render writes rep as a banner, the case data block, the results table and
// a closing line. Cells longer than their column are cut with "...".
func (Renderer) Render(w io.Writer, rep *domain.Report) error {
	bw := bufio.NewWriter(w)
	cols := report.Columns(rep.Metadata.RequestedTimezone)

	tableWidth := len(separator) * (len(cols) - 1)
	for _, c := range cols {
		tableWidth += c.Width
	}
	width := max(minWidth, tableWidth)

	rule := func(ch string, n int) { fmt.Fprintln(bw, strings.Repeat(ch, n)) }

	rule("=", width)
	fmt.Fprintln(bw, center("IP AND ISP ANALYSIS REPORT", width))
	rule("=", width)

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "--- Case Data ---")
	fields := report.MetadataFields(rep.Metadata)
	labelWidth := 0
	for _, f := range fields {
		labelWidth = max(labelWidth, utf8.RuneCountInString(f.Label)+1)
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", pad(f.Label+":", labelWidth), f.Value)
	}
	if len(rep.Metadata.UserMetadata) == 0 {
		fmt.Fprintln(bw, "  (no additional case data provided)")
	}
	rule("-", width)

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, center("Results (Applied Timezone: "+zoneLabel(rep)+")", width))
	rule("-", width)

	if len(rep.Records) == 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, center("No valid data was found or processed.", width))
	} else {
		header := make([]string, len(cols))
		for i, c := range cols {
			header[i] = pad(c.Title, c.Width)
		}
		fmt.Fprintln(bw, strings.Join(header, separator))
		rule("-", tableWidth)

		for _, row := range report.Rows(rep) {
			cells := row.Cells()
			line := make([]string, len(cols))
			for i, c := range cols {
				v := report.Truncate(cells[i], c.Width)
				if i == 0 {
					line[i] = center(v, c.Width)
				} else {
					line[i] = pad(v, c.Width)
				}
			}
			fmt.Fprintln(bw, strings.TrimRight(strings.Join(line, separator), " "))
		}
	}

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, summary(rep.Stats))
	rule("=", width)
	fmt.Fprintln(bw, center("End of report.", width))
	rule("=", width)

	return bw.Flush()
}

func zoneLabel(rep *domain.Report) string {
	if rep.Metadata.RequestedTimezone == "" {
		return "UTC"
	}
	return rep.Metadata.RequestedTimezone
}

func summary(s domain.RunStats) string {
	return fmt.Sprintf("Records: %s | Unique IPs: %s | Enriched: %s | Invalid IPs: %s | Unparseable timestamps: %s",
		humanize.Comma(int64(s.Records)), humanize.Comma(int64(s.UniqueIPs)), humanize.Comma(int64(s.Enriched)),
		humanize.Comma(int64(s.InvalidIPs)), humanize.Comma(int64(s.UnparseableTimestamps)))
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}
