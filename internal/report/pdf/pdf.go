// Package pdf renders reports as a landscape A4 PDF table.
package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/report"
)

const (
	fontFamily   = "Helvetica"
	lineHeight   = 3.5
	headerHeight = 6
	maxCellLines = 3
)

// columnWidths are in millimetres and fill the printable width of landscape A4.
var columnWidths = []float64{10, 45, 45, 50, 45, 45, 37}

func init() {
	report.Register(Renderer{})
}

// Renderer writes PDF reports.
type Renderer struct{}

func (Renderer) Name() string        { return "pdf" }
func (Renderer) Extension() string   { return ".pdf" }
func (Renderer) ContentType() string { return "application/pdf" }

func (Renderer) Render(w io.Writer, rep *domain.Report) error {
	doc := newDocument(rep)
	doc.title()
	doc.caseData()
	doc.table()
	if err := doc.pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

type document struct {
	pdf  *fpdf.Fpdf
	tr   func(string) string
	rep  *domain.Report
	cols []report.Column
}

func newDocument(rep *domain.Report) *document {
	p := fpdf.New("L", "mm", "A4", "")
	p.SetMargins(10, 10, 10)
	p.SetAutoPageBreak(true, 15)
	p.AliasNbPages("")
	p.SetTitle("IP and ISP Analysis Report", true)
	p.SetCreator(rep.Metadata.AppVersion, true)

	d := &document{
		pdf:  p,
		tr:   p.UnicodeTranslatorFromDescriptor(""),
		rep:  rep,
		cols: report.Columns(rep.Metadata.RequestedTimezone),
	}
	p.SetFooterFunc(d.footer)
	p.AddPage()
	return d
}

func (d *document) width() float64 {
	pageW, _ := d.pdf.GetPageSize()
	left, _, right, _ := d.pdf.GetMargins()
	return pageW - left - right
}

func (d *document) footer() {
	d.pdf.SetY(-12)
	d.pdf.SetFont(fontFamily, "I", 8)
	d.pdf.SetTextColor(100, 100, 100)
	label := "Generated by ipanalyzer"
	if v := d.rep.Metadata.AppVersion; v != "" {
		label += " " + v
	}
	d.pdf.CellFormat(d.width()/2, 8, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.CellFormat(d.width()/2, 8, fmt.Sprintf("Page %d/{nb}", d.pdf.PageNo()), "", 0, "R", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *document) title() {
	d.pdf.SetFont(fontFamily, "B", 14)
	d.pdf.CellFormat(d.width(), 10, "IP and ISP Analysis Report", "", 1, "C", false, 0, "")
	d.pdf.Ln(3)
}

func (d *document) caseData() {
	d.pdf.SetFont(fontFamily, "B", 9)
	d.pdf.CellFormat(d.width(), 7, "Case Data:", "", 1, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 8)
	for _, f := range report.MetadataFields(d.rep.Metadata) {
		if f.Value == "" {
			continue
		}
		d.pdf.MultiCell(d.width(), 4.5, d.tr("  "+f.Label+": "+f.Value), "", "L", false)
	}
	d.pdf.MultiCell(d.width(), 4.5, "  Total Pages: {nb}", "", "L", false)
	d.pdf.Ln(2)
	zone := d.rep.Metadata.RequestedTimezone
	if zone == "" {
		zone = "UTC"
	}
	d.pdf.CellFormat(d.width(), 5, d.tr("Applied Timezone: "+zone), "", 1, "L", false, 0, "")
	d.pdf.Ln(3)
}

func (d *document) table() {
	if len(d.rep.Records) == 0 {
		d.pdf.SetFont(fontFamily, "I", 10)
		d.pdf.CellFormat(d.width(), 10, "No valid data was found.", "", 1, "C", false, 0, "")
		return
	}

	d.tableHeader()
	d.pdf.SetFont(fontFamily, "", 7)
	_, pageH := d.pdf.GetPageSize()
	_, _, _, bottom := d.pdf.GetMargins()

	for _, row := range report.Rows(d.rep) {
		cells := row.Cells()
		lines := make([][]string, len(cells))
		n := 1
		for i, c := range cells {
			lines[i] = d.wrap(c, columnWidths[i])
			n = max(n, len(lines[i]))
		}
		h := float64(n) * lineHeight

		if d.pdf.GetY()+h > pageH-bottom {
			d.pdf.AddPage()
			d.tableHeader()
			d.pdf.SetFont(fontFamily, "", 7)
		}

		x, y := d.pdf.GetX(), d.pdf.GetY()
		for i, cellLines := range lines {
			d.pdf.Rect(x, y, columnWidths[i], h, "D")
			align := "L"
			if i == 0 {
				align = "C"
			}
			for j, line := range cellLines {
				d.pdf.SetXY(x, y+float64(j)*lineHeight)
				d.pdf.CellFormat(columnWidths[i], lineHeight, line, "", 0, align, false, 0, "")
			}
			x += columnWidths[i]
		}
		left, _, _, _ := d.pdf.GetMargins()
		d.pdf.SetXY(left, y+h)
	}
}

func (d *document) tableHeader() {
	d.pdf.SetFont(fontFamily, "B", 7)
	d.pdf.SetFillColor(230, 230, 230)
	d.pdf.SetLineWidth(0.2)
	for i, c := range d.cols {
		d.pdf.CellFormat(columnWidths[i], headerHeight, d.tr(c.Title), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
}

// wrap splits s into at most maxCellLines lines fitting width; overflow is
// replaced by "..." on the last line.
func (d *document) wrap(s string, width float64) []string {
	inner := width - 2*d.pdf.GetCellMargin()
	lines := d.pdf.SplitText(d.tr(s), inner)
	if len(lines) == 0 {
		return []string{""}
	}
	if len(lines) <= maxCellLines {
		return lines
	}
	lines = lines[:maxCellLines]
	last := strings.TrimRight(lines[maxCellLines-1], " ")
	for last != "" && d.pdf.GetStringWidth(last+"...") > inner {
		last = last[:len(last)-1]
	}
	lines[maxCellLines-1] = last + "..."
	return lines
}
