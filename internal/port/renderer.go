package port

import (
	"io"

	"ipanalyzer/internal/domain"
)

// ReportRenderer writes a finished report in one output format.
type ReportRenderer interface {
	Name() string
	Extension() string
	ContentType() string
	Render(w io.Writer, rep *domain.Report) error
}
