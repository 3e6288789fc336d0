// Package app wires configuration into the services shared by the CLI and
// the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/enrich/ipinfo"
	"ipanalyzer/internal/extractor"
	_ "ipanalyzer/internal/extractor/claude"
	_ "ipanalyzer/internal/extractor/gemini"
	_ "ipanalyzer/internal/extractor/openai"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/notify"
	"ipanalyzer/internal/port"
	"ipanalyzer/internal/service"
	"ipanalyzer/internal/source"
	"ipanalyzer/internal/storage"
	s3storage "ipanalyzer/internal/storage/s3"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Metrics  *metrics.Handler
	Reader   *source.Reader
	Lookup   *ipinfo.Client
	Analysis service.AnalysisService
	Delivery service.DeliveryService

	// Publisher is nil unless publishing is enabled.
	Publisher *storage.Publisher
}

// Option adjusts how New builds the App.
type Option func(*options)

type options struct {
	publish bool
}

// WithPublishing forces the S3 publisher on regardless of publish.enabled.
func WithPublishing(enabled bool) Option {
	return func(o *options) { o.publish = o.publish || enabled }
}

// New builds every component. It does not contact any upstream service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := options{publish: cfg.Publish.Enabled}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Enrichment.Provider != "" && cfg.Enrichment.Provider != "ipinfo" {
		return nil, fmt.Errorf("unknown enrichment provider: %s", cfg.Enrichment.Provider)
	}

	ext, err := extractor.New(&cfg.Extractor, log.With().Str("component", "extractor").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	m := metrics.New()
	lookup := ipinfo.NewClient(&cfg.Enrichment)

	var publisher *storage.Publisher
	if o.publish {
		store, err := s3storage.NewStore(ctx, &cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		publisher = storage.NewPublisher(store, &cfg.Publish, log.With().Str("component", "publisher").Logger())
	}

	notifier, err := notify.New(ctx, &cfg.Notify, log.With().Str("component", "notify").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	return &App{
		Config:  cfg,
		Log:     log,
		Metrics: m,
		Reader:  source.NewReader(cfg.Run.MaxFileSizeMB<<20, log.With().Str("component", "source").Logger()),
		Lookup:  lookup,
		Analysis: service.NewAnalysisService(ext, lookup, cfg, m,
			log.With().Str("component", "analysis").Logger()),
		Delivery: service.NewDeliveryService(publisher, notifier, cfg.Notify.Recipients, m,
			log.With().Str("component", "delivery").Logger()),
		Publisher: publisher,
	}, nil
}

// CredentialCheckers returns a checker for every configured extraction
// provider followed by the lookup service.
func (a *App) CredentialCheckers() ([]port.CredentialChecker, error) {
	checkers, err := extractor.CredentialCheckers(&a.Config.Extractor)
	if err != nil {
		return nil, err
	}
	return append(checkers, a.Lookup), nil
}
