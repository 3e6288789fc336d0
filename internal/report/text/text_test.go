package text_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/report"
	"ipanalyzer/internal/report/reporttest"
	"ipanalyzer/internal/report/text"
)

func render(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, text.Renderer{}.Render(&buf, reporttest.Sample()))
	return buf.String()
}

func TestRender_Layout(t *testing.T) {
	out := render(t)

	assert.Contains(t, out, "IP AND ISP ANALYSIS REPORT")
	assert.Contains(t, out, "Source File SHA-256:")
	assert.Contains(t, out, "Lead Investigator:")
	assert.Contains(t, out, "Ana Ruiz")
	assert.Contains(t, out, "Results (Applied Timezone: America/New_York)")
	assert.Contains(t, out, "Timestamp (America/New_York)")
	assert.Contains(t, out, "End of report.")

	lines := strings.Split(out, "\n")
	var rows []string
	for _, l := range lines {
		if strings.Contains(l, " | ") && !strings.HasPrefix(l, "No.") && !strings.HasPrefix(l, "Records:") {
			rows = append(rows, l)
		}
	}
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], "8.8.8.8")
	assert.Contains(t, rows[0], "2024-08-21T10:00:00Z")
	assert.Contains(t, rows[0], "Google LLC")
	assert.Contains(t, rows[1], "N/A")
	assert.Contains(t, rows[1], "Error: not_public (private)")
	assert.Contains(t, rows[2], "unknown")
	assert.Contains(t, rows[2], "Error: invalid_ip")
	assert.Contains(t, rows[2], "...", "long error text is cut to the column width")
}

func TestRender_ColumnsAreFixedWidth(t *testing.T) {
	out := render(t)
	cols := report.Columns("America/New_York")

	for _, l := range strings.Split(out, "\n") {
		if !strings.HasPrefix(l, "No.") {
			continue
		}
		parts := strings.Split(l, " | ")
		require.Len(t, parts, len(cols))
		for i, p := range parts[:len(parts)-1] {
			assert.Len(t, []rune(p), cols[i].Width, cols[i].Title)
		}
	}
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, text.Renderer{}.Render(&buf, reporttest.Empty()))
	assert.Contains(t, buf.String(), "No valid data was found or processed.")
	assert.NotContains(t, buf.String(), "IP Address")
}

func TestRenderer_Registered(t *testing.T) {
	r, err := report.Get("txt")
	require.NoError(t, err)
	assert.Equal(t, ".txt", r.Extension())
}
