// Package s3 stores published reports in Amazon S3 or an S3-compatible
// service such as MinIO.
package s3

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/port"
)

// reportCacheControl keeps proxies from holding on to case material.
const reportCacheControl = "private, no-store"

// Store is the S3 implementation of port.ReportStore.
type Store struct {
	api      *s3.Client
	links    *s3.PresignClient
	uploader *manager.Uploader
}

// NewStore builds a Store from the publish settings. Static keys are used
// when both are set, otherwise the default AWS credential chain applies. A
// custom Endpoint switches to path-style addressing.
func NewStore(ctx context.Context, cfg *config.PublishConfig) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{
		api:      api,
		links:    s3.NewPresignClient(api),
		uploader: manager.NewUploader(api),
	}, nil
}

// PutReport uploads obj. Reports are small, so the uploader sends a single
// PUT in practice; it still handles multipart for oversized PDFs.
func (s *Store) PutReport(ctx context.Context, obj port.ReportObject) (*port.StoredReport, error) {
	in := &s3.PutObjectInput{
		Bucket:       aws.String(obj.Bucket),
		Key:          aws.String(obj.Key),
		Body:         obj.Body,
		ContentType:  aws.String(obj.ContentType),
		CacheControl: aws.String(reportCacheControl),
		Metadata:     obj.Metadata,
	}
	if obj.Size > 0 {
		in.ContentLength = aws.Int64(obj.Size)
	}
	if obj.FileName != "" {
		in.ContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": obj.FileName}))
	}

	out, err := s.uploader.Upload(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", obj.Key, err)
	}
	return &port.StoredReport{
		Location:  out.Location,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionID),
	}, nil
}

// DownloadURL presigns a GET for key, valid for ttl.
func (s *Store) DownloadURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.links.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}

// CheckBucket issues a HeadBucket request.
func (s *Store) CheckBucket(ctx context.Context, bucket string) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s: %w", bucket, err)
	}
	return nil
}
