package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestHandler_Counters(t *testing.T) {
	h := metrics.New()

	h.IncEnrichmentLookup("ok")
	h.IncEnrichmentLookup("ok")
	h.IncEnrichmentLookup("not_public")
	h.IncEnrichmentCacheHit()
	h.IncRunsTotal("success")
	h.ObserveExtraction(150*time.Millisecond, "gemini", true, 3)

	assert.Equal(t, float64(2), counterValue(t, h.EnrichmentLookups.WithLabelValues("ok")))
	assert.Equal(t, float64(1), counterValue(t, h.EnrichmentLookups.WithLabelValues("not_public")))
	assert.Equal(t, float64(1), counterValue(t, h.EnrichmentCacheHits))
	assert.Equal(t, float64(1), counterValue(t, h.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(3), counterValue(t, h.ExtractedRecords))
}

func TestHandler_NilIsNoop(t *testing.T) {
	var h *metrics.Handler

	assert.NotPanics(t, func() {
		h.IncRunsTotal("success")
		h.ObserveRunDuration(time.Second)
		h.ObserveExtraction(time.Second, "gemini", false, 0)
		h.IncEnrichmentLookup("timeout")
		h.IncEnrichmentCacheHit()
		h.IncEnrichmentRetry("429")
		h.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
		h.IncReportsRendered("csv")
	})
	assert.Nil(t, h.Registry())
}

func TestHandler_InstancesAreIndependent(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.IncReportsRendered("csv")

	assert.Equal(t, float64(1), counterValue(t, a.ReportsRenderedTotal.WithLabelValues("csv")))
	assert.Equal(t, float64(0), counterValue(t, b.ReportsRenderedTotal.WithLabelValues("csv")))
}

func TestHandler_HTTPHandler(t *testing.T) {
	h := metrics.New()
	h.ObserveRequest("POST", "/api/v1/analyses", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	h.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `ipanalyzer_http_requests_received{method="POST",route="/api/v1/analyses",status="200"} 1`)
}
