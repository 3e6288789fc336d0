package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ipanalyzer"

// Handler owns the application's Prometheus collectors. A nil *Handler is
// valid and records nothing, so library code never has to check.
type Handler struct {
	registry *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	ExtractionLatency    *prometheus.HistogramVec
	ExtractedRecords     prometheus.Counter
	EnrichmentLookups    *prometheus.CounterVec
	EnrichmentCacheHits  prometheus.Counter
	EnrichmentRetries    *prometheus.CounterVec
	RequestsReceived     *prometheus.CounterVec
	RequestLatency       *prometheus.HistogramVec
	ReportsRenderedTotal *prometheus.CounterVec
}

// New registers every collector on a fresh registry. Process and Go runtime
// collectors are included so /metrics is useful on its own.
func New() *Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Handler{
		registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "The total number of analysis runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of analysis runs",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		ExtractionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_latency_seconds",
			Help:      "The latency of language-model extraction calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "success"}),
		ExtractedRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_records_total",
			Help:      "The total number of raw records returned by extractors",
		}),
		EnrichmentLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_lookups_total",
			Help:      "IP enrichment outcomes by result",
		}, []string{"result"}),
		EnrichmentCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_cache_hits_total",
			Help:      "Enrichment requests answered from the per-run cache",
		}),
		EnrichmentRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_retries_total",
			Help:      "Upstream lookup retries by cause",
		}, []string{"cause"}),
		RequestsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_received",
			Help:      "The total number of http requests received",
		}, []string{"method", "route", "status"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "The latency of http requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ReportsRenderedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_rendered_total",
			Help:      "Rendered reports by format",
		}, []string{"format"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (h *Handler) Registry() *prometheus.Registry {
	if h == nil {
		return nil
	}
	return h.registry
}

// HTTPHandler serves the registry in the Prometheus text format.
func (h *Handler) HTTPHandler() http.Handler {
	if h == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{Registry: h.registry})
}

// IncRunsTotal counts a finished run. outcome is "success" or an error kind.
func (h *Handler) IncRunsTotal(outcome string) {
	if h == nil {
		return
	}
	h.RunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records the duration of a finished run.
func (h *Handler) ObserveRunDuration(d time.Duration) {
	if h == nil {
		return
	}
	h.RunDuration.Observe(d.Seconds())
}

// ObserveExtraction records one extraction call.
func (h *Handler) ObserveExtraction(d time.Duration, provider string, success bool, records int) {
	if h == nil {
		return
	}
	h.ExtractionLatency.WithLabelValues(provider, strconv.FormatBool(success)).Observe(d.Seconds())
	h.ExtractedRecords.Add(float64(records))
}

// IncEnrichmentLookup counts one enrichment outcome ("ok" or a failure reason).
func (h *Handler) IncEnrichmentLookup(result string) {
	if h == nil {
		return
	}
	h.EnrichmentLookups.WithLabelValues(result).Inc()
}

// IncEnrichmentCacheHit counts one cache hit.
func (h *Handler) IncEnrichmentCacheHit() {
	if h == nil {
		return
	}
	h.EnrichmentCacheHits.Inc()
}

// IncEnrichmentRetry counts one upstream retry.
func (h *Handler) IncEnrichmentRetry(cause string) {
	if h == nil {
		return
	}
	h.EnrichmentRetries.WithLabelValues(cause).Inc()
}

// ObserveRequest records one served HTTP request.
func (h *Handler) ObserveRequest(method, route string, status int, d time.Duration) {
	if h == nil {
		return
	}
	h.RequestsReceived.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.RequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncReportsRendered counts one rendered report.
func (h *Handler) IncReportsRendered(format string) {
	if h == nil {
		return
	}
	h.ReportsRenderedTotal.WithLabelValues(format).Inc()
}
