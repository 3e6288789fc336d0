// Package notify selects the run summary notifier from configuration.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/notify/noop"
	"ipanalyzer/internal/notify/ses"
	"ipanalyzer/internal/port"
)

// New returns the notifier named by cfg.Provider ("noop" or "ses").
func New(ctx context.Context, cfg *config.NotifyConfig, log zerolog.Logger) (port.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "noop":
		return noop.NewNoopNotifier(log), nil
	case "ses":
		return ses.NewSESNotifier(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
}
