package noop

import (
	"context"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/port"
)

type noopNotifier struct {
	log zerolog.Logger
}

// NewNoopNotifier creates a Notifier that only logs the run summary.
func NewNoopNotifier(log zerolog.Logger) port.Notifier {
	return &noopNotifier{log: log}
}

func (n *noopNotifier) SendRunSummary(_ context.Context, recipients []string, summary port.RunSummary) error {
	ev := n.log.Info().
		Strs("recipients", recipients).
		Str("run_id", summary.Metadata.RunID.String()).
		Str("source", summary.Metadata.SourceFileName).
		Int("records", summary.Stats.Records)
	for format, url := range summary.ReportLinks {
		ev = ev.Str("report_"+format, url)
	}
	ev.Msg("[NOOP NOTIFY] run summary")
	return nil
}
