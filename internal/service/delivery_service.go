package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/csvexport"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/port"
	"ipanalyzer/internal/report"
	_ "ipanalyzer/internal/report/formats"
	"ipanalyzer/internal/storage"
)

// DeliveryService renders finished reports and hands them to publishing and
// notification backends.
type DeliveryService interface {
	// Render produces one artifact per requested format.
	Render(rep *domain.Report, formats []string) ([]storage.Artifact, error)
	// Publish uploads artifacts. It is a no-op without a publisher.
	Publish(ctx context.Context, rep *domain.Report, artifacts []storage.Artifact) ([]storage.Link, error)
	// Notify sends the run summary to the configured recipients.
	Notify(ctx context.Context, rep *domain.Report, links []storage.Link) error
}

type deliveryService struct {
	publisher  *storage.Publisher
	notifier   port.Notifier
	recipients []string
	metrics    *metrics.Handler
	log        zerolog.Logger
}

// NewDeliveryService creates a DeliveryService. publisher and notifier may be nil.
func NewDeliveryService(
	publisher *storage.Publisher,
	notifier port.Notifier,
	recipients []string,
	m *metrics.Handler,
	log zerolog.Logger,
) DeliveryService {
	return &deliveryService{
		publisher:  publisher,
		notifier:   notifier,
		recipients: recipients,
		metrics:    m,
		log:        log,
	}
}

func (s *deliveryService) Render(rep *domain.Report, formats []string) ([]storage.Artifact, error) {
	renderers, err := report.Resolve(formats)
	if err != nil {
		return nil, err
	}

	base := csvexport.BuildBaseName(rep.Metadata.SourceFileName, rep.Metadata.AnalysisTimestamp)
	artifacts := make([]storage.Artifact, 0, len(renderers))
	for _, r := range renderers {
		data, err := report.Bytes(r, rep)
		if err != nil {
			return nil, err
		}
		s.metrics.IncReportsRendered(r.Name())
		artifacts = append(artifacts, storage.Artifact{
			Format:      r.Name(),
			FileName:    base + r.Extension(),
			ContentType: r.ContentType(),
			Data:        data,
		})
	}
	return artifacts, nil
}

func (s *deliveryService) Publish(ctx context.Context, rep *domain.Report, artifacts []storage.Artifact) ([]storage.Link, error) {
	if s.publisher == nil || len(artifacts) == 0 {
		return nil, nil
	}
	links, err := s.publisher.Publish(ctx, rep.Metadata, artifacts)
	if err != nil {
		return links, fmt.Errorf("publishing run %s: %w", rep.Metadata.RunID, err)
	}
	return links, nil
}

func (s *deliveryService) Notify(ctx context.Context, rep *domain.Report, links []storage.Link) error {
	if s.notifier == nil || len(s.recipients) == 0 {
		s.log.Debug().Msg("service.Notify: no notifier or recipients configured, skipping")
		return nil
	}
	summary := port.RunSummary{
		Metadata:    rep.Metadata,
		Stats:       rep.Stats,
		ReportLinks: make(map[string]string, len(links)),
	}
	for _, l := range links {
		summary.ReportLinks[l.Format] = l.URL
	}
	if err := s.notifier.SendRunSummary(ctx, s.recipients, summary); err != nil {
		return fmt.Errorf("sending run summary: %w", err)
	}
	return nil
}
