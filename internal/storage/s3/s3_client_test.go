package s3_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/port"
	"ipanalyzer/internal/storage/s3"
)

func testConfig(endpoint string) *config.PublishConfig {
	return &config.PublishConfig{
		Region:    "us-east-1",
		Bucket:    "reports",
		Endpoint:  endpoint,
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}
}

func TestDownloadURL(t *testing.T) {
	store, err := s3.NewStore(context.Background(), testConfig("http://127.0.0.1:9000"))
	require.NoError(t, err)

	raw, err := store.DownloadURL(context.Background(), "reports", "runs/abc/report.pdf", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/reports/runs/abc/report.pdf", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPutReport(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		header http.Header
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, header, body = r.Method, r.URL.Path, r.Header.Clone(), data
		mu.Unlock()
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("x-amz-version-id", "v1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := s3.NewStore(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	out, err := store.PutReport(context.Background(), port.ReportObject{
		Bucket:      "reports",
		Key:         "runs/abc/report.txt",
		Body:        bytes.NewReader([]byte("hello report")),
		Size:        12,
		ContentType: "text/plain",
		FileName:    "incident_ip_report.txt",
		Metadata:    map[string]string{"run-id": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, out.ETag)
	assert.Equal(t, "v1", out.VersionID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/reports/runs/abc/report.txt", path)
	assert.Equal(t, "text/plain", header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=incident_ip_report.txt", header.Get("Content-Disposition"))
	assert.Equal(t, "private, no-store", header.Get("Cache-Control"))
	assert.Equal(t, "abc", header.Get("X-Amz-Meta-Run-Id"))
	assert.Contains(t, string(body), "hello report")
}

func TestCheckBucket(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/reports", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	store, err := s3.NewStore(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	require.NoError(t, store.CheckBucket(context.Background(), "reports"))

	status.Store(http.StatusForbidden)
	err = store.CheckBucket(context.Background(), "reports")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 bucket reports")
}
