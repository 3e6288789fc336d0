package notify_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/notify"
	"ipanalyzer/internal/port"
)

func TestNew_Noop(t *testing.T) {
	var buf bytes.Buffer
	n, err := notify.New(context.Background(), &config.NotifyConfig{Provider: "noop"}, zerolog.New(&buf))
	require.NoError(t, err)

	err = n.SendRunSummary(context.Background(), []string{"a@example.com"}, port.RunSummary{
		Metadata:    domain.RunMetadata{RunID: uuid.Nil, SourceFileName: "x.log"},
		Stats:       domain.RunStats{Records: 3},
		ReportLinks: map[string]string{"csv": "https://example/x.csv"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"records":3`)
	assert.Contains(t, buf.String(), `"report_csv":"https://example/x.csv"`)
	assert.Contains(t, buf.String(), "[NOOP NOTIFY]")
}

func TestNew_DefaultsToNoop(t *testing.T) {
	n, err := notify.New(context.Background(), &config.NotifyConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestNew_Unknown(t *testing.T) {
	_, err := notify.New(context.Background(), &config.NotifyConfig{Provider: "pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}
