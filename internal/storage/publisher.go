// Package storage saves rendered reports locally and publishes them to
// object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/port"
)

// maxLinkExpiry is the longest lifetime SigV4 allows for a presigned URL.
const maxLinkExpiry = 7 * 24 * time.Hour

// Artifact is one rendered report ready for upload.
type Artifact struct {
	Format      string
	FileName    string
	ContentType string
	Data        []byte
}

// Link is a published artifact.
type Link struct {
	Format string `json:"format"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

// Publisher uploads the artifacts of a run under {prefix}/{run_id}/.
type Publisher struct {
	store  port.ReportStore
	bucket string
	prefix string
	expiry time.Duration
	log    zerolog.Logger
}

// NewPublisher creates a Publisher writing to cfg.Bucket.
func NewPublisher(store port.ReportStore, cfg *config.PublishConfig, log zerolog.Logger) *Publisher {
	expiry := cfg.LinkExpiry
	if expiry <= 0 || expiry > maxLinkExpiry {
		expiry = maxLinkExpiry
	}
	return &Publisher{
		store:  store,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		expiry: expiry,
		log:    log,
	}
}

// ObjectKey returns the storage key of fileName for a run.
func (p *Publisher) ObjectKey(runID uuid.UUID, fileName string) string {
	return path.Join(p.prefix, runID.String(), path.Base(fileName))
}

// Publish uploads every artifact of the run described by meta and returns a
// presigned download link for each. It stops at the first failed upload;
// links for artifacts already uploaded are returned alongside the error.
func (p *Publisher) Publish(ctx context.Context, meta domain.RunMetadata, artifacts []Artifact) ([]Link, error) {
	links := make([]Link, 0, len(artifacts))
	for _, a := range artifacts {
		key := p.ObjectKey(meta.RunID, a.FileName)

		if _, err := p.store.PutReport(ctx, port.ReportObject{
			Bucket:      p.bucket,
			Key:         key,
			Body:        bytes.NewReader(a.Data),
			Size:        int64(len(a.Data)),
			ContentType: a.ContentType,
			FileName:    path.Base(a.FileName),
			Metadata: map[string]string{
				"run-id":        meta.RunID.String(),
				"report-format": a.Format,
				"source-sha256": meta.SourceFileSHA256,
				"app-version":   meta.AppVersion,
			},
		}); err != nil {
			return links, fmt.Errorf("%w: %s: %v", domain.ErrPublishFailed, key, err)
		}

		url, err := p.store.DownloadURL(ctx, p.bucket, key, p.expiry)
		if err != nil {
			return links, fmt.Errorf("%w: presigning %s: %v", domain.ErrPublishFailed, key, err)
		}

		p.log.Info().Str("run_id", meta.RunID.String()).Str("key", key).Str("size", humanize.Bytes(uint64(len(a.Data)))).
			Msg("storage.Publisher: report uploaded")
		links = append(links, Link{Format: a.Format, Key: key, URL: url})
	}
	return links, nil
}

// Check verifies that the configured bucket is reachable.
func (p *Publisher) Check(ctx context.Context) error {
	return p.store.CheckBucket(ctx, p.bucket)
}
