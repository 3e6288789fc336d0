package port

import (
	"context"
	"io"
	"time"
)

// ReportObject is one rendered report on its way to the report store.
type ReportObject struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	// FileName is offered to browsers through Content-Disposition.
	FileName string
	// Metadata is stored with the object, e.g. the run ID and source checksum.
	Metadata map[string]string
}

// StoredReport describes an object accepted by the store.
type StoredReport struct {
	Location  string
	ETag      string
	VersionID string
}

// ReportStore keeps published reports and issues time-limited download links.
type ReportStore interface {
	PutReport(ctx context.Context, obj ReportObject) (*StoredReport, error)
	DownloadURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// CheckBucket reports whether bucket exists and is reachable with the configured credentials.
	CheckBucket(ctx context.Context, bucket string) error
}
