// Package formats registers every report renderer with the report registry.
package formats

import (
	_ "ipanalyzer/internal/csvexport"
	_ "ipanalyzer/internal/report/jsonreport"
	_ "ipanalyzer/internal/report/pdf"
	_ "ipanalyzer/internal/report/text"
	_ "ipanalyzer/internal/report/xlsx"
)
