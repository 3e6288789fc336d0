package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/aggregate"
	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/enrich"
	"ipanalyzer/internal/extractor"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/port"
	"ipanalyzer/internal/source"
	"ipanalyzer/internal/timestamp"
)

// Run outcome labels recorded on the runs counter.
const (
	OutcomeSuccess          = "success"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeInvalidInput     = "invalid_input"
)

// AnalyzeRequest is one analysis run.
type AnalyzeRequest struct {
	Document *source.Document
	// Timezone is the IANA zone for the converted timestamp column. Empty
	// means timestamps.default_zone.
	Timezone string
	Metadata []domain.MetadataPair
}

// AnalysisService runs the extraction, normalization, enrichment and
// aggregation pipeline over one document.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*domain.Report, error)
}

// Option configures the analysis service.
type Option func(*analysisService)

// WithClock overrides the time source used for run metadata and durations.
func WithClock(now func() time.Time) Option {
	return func(s *analysisService) { s.now = now }
}

// WithEnricherOptions passes extra options to every per-run Enricher.
func WithEnricherOptions(opts ...enrich.Option) Option {
	return func(s *analysisService) { s.enrichOpts = append(s.enrichOpts, opts...) }
}

type analysisService struct {
	extractor  port.Extractor
	lookup     port.IPLookup
	cfg        *config.Config
	metrics    *metrics.Handler
	log        zerolog.Logger
	now        func() time.Time
	enrichOpts []enrich.Option
}

// NewAnalysisService creates the pipeline service. Each Analyze call gets its
// own Enricher, so the enrichment cache never outlives a run.
func NewAnalysisService(
	ext port.Extractor,
	lookup port.IPLookup,
	cfg *config.Config,
	m *metrics.Handler,
	log zerolog.Logger,
	opts ...Option,
) AnalysisService {
	s := &analysisService{
		extractor: ext,
		lookup:    lookup,
		cfg:       cfg,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *analysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.Report, error) {
	if req.Document == nil {
		s.metrics.IncRunsTotal(OutcomeInvalidInput)
		return nil, domain.ErrEmptySource
	}

	start := s.now()
	if s.cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Run.Timeout)
		defer cancel()
	}

	zone := strings.TrimSpace(req.Timezone)
	if zone == "" {
		zone = s.cfg.Timestamps.DefaultZone
	}
	normalizer, err := timestamp.New(zone, s.cfg.Timestamps.AssumeZone,
		timestamp.WithReference(start),
		timestamp.WithDayFirst(s.cfg.Timestamps.DayFirst),
		timestamp.WithLogger(s.log),
	)
	if err != nil {
		s.metrics.IncRunsTotal(OutcomeInvalidInput)
		return nil, err
	}

	meta := domain.RunMetadata{
		RunID:             uuid.New(),
		SourceFileName:    req.Document.Name,
		SourceFileSHA256:  req.Document.SHA256,
		SourceSizeBytes:   req.Document.SizeBytes,
		AnalysisTimestamp: start.UTC(),
		RequestedTimezone: normalizer.Location().String(),
		AppVersion:        config.ApplicationVersion,
		UserMetadata:      copyPairs(req.Metadata),
	}
	log := s.log.With().Str("run_id", meta.RunID.String()).Str("source", meta.SourceFileName).Logger()
	log.Info().Str("size", humanize.Bytes(uint64(max(meta.SourceSizeBytes, 0)))).Str("timezone", meta.RequestedTimezone).
		Msg("service.Analyze: run started")

	extractStart := s.now()
	out, err := s.extractor.Extract(ctx, port.ExtractInput{Text: req.Document.Text})
	if err != nil {
		err = extractor.AsExtractionError("", err)
		s.metrics.ObserveExtraction(s.now().Sub(extractStart), providerOf(err), false, 0)
		s.metrics.IncRunsTotal(OutcomeExtractionFailed)
		log.Error().Err(err).Msg("service.Analyze: extraction failed")
		return nil, err
	}
	s.metrics.ObserveExtraction(s.now().Sub(extractStart), out.Provider, true, len(out.Records))
	log.Info().Str("provider", out.Provider).Str("model", out.ModelUsed).Int("raw_records", len(out.Records)).
		Msg("service.Analyze: extraction finished")

	agg := aggregate.New(normalizer, log)
	keys := agg.Keys(out.Records)

	enricher := enrich.New(s.lookup, &s.cfg.Enrichment, log, append([]enrich.Option{enrich.WithMetrics(s.metrics)}, s.enrichOpts...)...)
	results := enricher.Enrich(ctx, keys)

	rep := agg.Aggregate(out.Records, req.Document.Text, results, meta)
	rep.Stats.Duration = s.now().Sub(start)
	rep.Stats.ExtractionProvider = out.Provider
	rep.Stats.ExtractionModel = out.ModelUsed

	s.metrics.IncRunsTotal(OutcomeSuccess)
	s.metrics.ObserveRunDuration(rep.Stats.Duration)

	ev := log.Info().
		Str("records", humanize.Comma(int64(rep.Stats.Records))).
		Int("unique_ips", rep.Stats.UniqueIPs).
		Int("enriched", rep.Stats.Enriched).
		Int("invalid_ips", rep.Stats.InvalidIPs).
		Int("unparseable_timestamps", rep.Stats.UnparseableTimestamps).
		Int64("upstream_calls", enricher.UpstreamCalls()).
		Dur("duration", rep.Stats.Duration)
	for reason, n := range rep.Stats.EnrichmentFailures {
		ev = ev.Int("failed_"+string(reason), n)
	}
	ev.Msg("service.Analyze: run finished")

	return rep, nil
}

func providerOf(err error) string {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) && ee.Provider != "" {
		return ee.Provider
	}
	return "unknown"
}

func copyPairs(pairs []domain.MetadataPair) []domain.MetadataPair {
	out := make([]domain.MetadataPair, len(pairs))
	copy(out, pairs)
	return out
}
