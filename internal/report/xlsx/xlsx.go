// Package xlsx renders reports as an Excel workbook with a results sheet and
// a metadata sheet.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/report"
)

const (
	ResultsSheet  = "Results"
	MetadataSheet = "Metadata"
)

func init() {
	report.Register(Renderer{})
}

// Renderer writes .xlsx workbooks.
type Renderer struct{}

func (Renderer) Name() string      { return "xlsx" }
func (Renderer) Extension() string { return ".xlsx" }
func (Renderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (Renderer) Render(w io.Writer, rep *domain.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), ResultsSheet); err != nil {
		return fmt.Errorf("naming results sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E6E6E6"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeResults(f, rep, header); err != nil {
		return err
	}
	if err := writeMetadata(f, rep.Metadata, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, rep *domain.Report, headerStyle int) error {
	hdr := make([]any, len(report.ExportHeader))
	for i, h := range report.ExportHeader {
		hdr[i] = h
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(hdr), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ResultsSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	rows := report.Rows(rep)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.Values()
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", row.Sequence, err)
		}
	}

	if err := f.SetColWidth(ResultsSheet, "A", "A", 10); err != nil {
		return err
	}
	endCol, _ := excelize.ColumnNumberToName(len(hdr))
	if err := f.SetColWidth(ResultsSheet, "B", endCol, 22); err != nil {
		return err
	}
	if err := f.SetPanes(ResultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}
	if len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(hdr), len(rows)+1)
		if err := f.AutoFilter(ResultsSheet, "A1:"+lastCell, nil); err != nil {
			return fmt.Errorf("adding filter: %w", err)
		}
	}
	return nil
}

func writeMetadata(f *excelize.File, m domain.RunMetadata, headerStyle int) error {
	if _, err := f.NewSheet(MetadataSheet); err != nil {
		return fmt.Errorf("creating metadata sheet: %w", err)
	}
	if err := f.SetSheetRow(MetadataSheet, "A1", &[]any{"Key", "Field", "Value"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(MetadataSheet, "A1", "C1", headerStyle); err != nil {
		return err
	}
	for i, field := range report.MetadataFields(m) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MetadataSheet, cell, &[]any{field.Key, field.Label, field.Value}); err != nil {
			return fmt.Errorf("writing metadata %s: %w", field.Key, err)
		}
	}
	if err := f.SetColWidth(MetadataSheet, "A", "B", 24); err != nil {
		return err
	}
	return f.SetColWidth(MetadataSheet, "C", "C", 70)
}
