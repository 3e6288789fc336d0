package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/ipkey"
	"ipanalyzer/internal/metrics"
	"ipanalyzer/internal/port"
)

const (
	defaultConcurrency = 4
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
)

// Enricher resolves IPKeys to enrichment results. One Enricher serves one
// run: its cache is never invalidated and every entry is written once.
type Enricher struct {
	lookup      port.IPLookup
	cache       *cache.Cache
	flight      singleflight.Group
	limiter     *rate.Limiter
	concurrency int
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	metrics     *metrics.Handler
	log         zerolog.Logger

	upstreamCalls atomic.Int64
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMetrics records lookup outcomes on m.
func WithMetrics(m *metrics.Handler) Option {
	return func(e *Enricher) { e.metrics = m }
}

// WithLimiter replaces the limiter built from the config.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Enricher) { e.limiter = l }
}

// New creates an Enricher backed by lookup.
func New(lookup port.IPLookup, cfg *config.EnrichmentConfig, log zerolog.Logger, opts ...Option) *Enricher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	e := &Enricher{
		lookup:      lookup,
		cache:       cache.New(cache.NoExpiration, 0),
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		log:         log,
	}
	if e.concurrency < 1 {
		e.concurrency = defaultConcurrency
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if e.backoffBase <= 0 {
		e.backoffBase = defaultBackoffBase
	}
	if e.backoffMax < e.backoffBase {
		e.backoffMax = defaultBackoffMax
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpstreamCalls returns how many requests reached the lookup backend,
// retries included.
func (e *Enricher) UpstreamCalls() int64 {
	return e.upstreamCalls.Load()
}

// Enrich looks up every distinct key in ips and returns exactly one result
// per key. Keys are processed with bounded concurrency; the returned map does
// not depend on completion order. If ctx ends early, results already
// obtained are kept and the rest are marked as timed out.
func (e *Enricher) Enrich(ctx context.Context, ips []domain.IPKey) map[domain.IPKey]*domain.EnrichmentResult {
	unique := dedupe(ips)
	results := make(map[domain.IPKey]*domain.EnrichmentResult, len(unique))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, ip := range unique {
		g.Go(func() error {
			res := e.Lookup(ctx, ip)
			mu.Lock()
			results[ip] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	e.log.Debug().Int("unique_ips", len(unique)).Int64("upstream_calls", e.UpstreamCalls()).
		Msg("enrich.Enricher: enrichment finished")
	return results
}

// Lookup returns the result for a single key, consulting the cache first.
// Concurrent callers asking for the same key share one upstream request.
func (e *Enricher) Lookup(ctx context.Context, ip domain.IPKey) *domain.EnrichmentResult {
	key := string(ip)
	if v, ok := e.cache.Get(key); ok {
		e.metrics.IncEnrichmentCacheHit()
		return v.(*domain.EnrichmentResult)
	}

	v, _, _ := e.flight.Do(key, func() (interface{}, error) {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}
		res := e.resolve(ctx, ip)
		e.metrics.IncEnrichmentLookup(resultLabel(res))
		return e.store(key, res), nil
	})
	return v.(*domain.EnrichmentResult)
}

// store writes res unless another result is already cached, and returns the
// cached value either way.
func (e *Enricher) store(key string, res *domain.EnrichmentResult) *domain.EnrichmentResult {
	if err := e.cache.Add(key, res, cache.NoExpiration); err != nil {
		if existing, ok := e.cache.Get(key); ok {
			return existing.(*domain.EnrichmentResult)
		}
	}
	return res
}

func (e *Enricher) resolve(ctx context.Context, ip domain.IPKey) *domain.EnrichmentResult {
	if public, class := ipkey.Classify(ip); !public {
		return domain.NewEnrichmentFailure(ip, domain.ReasonNotPublic, class)
	}

	for attempt := 0; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.NewEnrichmentFailure(ip, domain.ReasonTimeout, err.Error())
		}

		e.upstreamCalls.Add(1)
		info, err := e.lookup.Lookup(ctx, ip)
		if err == nil {
			return domain.NewEnrichmentSuccess(ip, info)
		}

		out := classify(ctx, err)
		if !out.retryable || attempt >= e.maxRetries {
			e.log.Warn().Str("ip", string(ip)).Str("reason", string(out.reason)).Int("attempts", attempt+1).Err(err).
				Msg("enrich.Enricher: lookup failed")
			return domain.NewEnrichmentFailure(ip, out.reason, err.Error())
		}

		delay := e.backoff(attempt, out.retryAfter)
		e.metrics.IncEnrichmentRetry(string(out.reason))
		e.log.Debug().Str("ip", string(ip)).Int("attempt", attempt+1).Dur("delay", delay).Err(err).
			Msg("enrich.Enricher: retrying lookup")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.NewEnrichmentFailure(ip, domain.ReasonTimeout,
				fmt.Sprintf("%v (last error: %v)", ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// backoff returns the delay before attempt+1. A server-provided Retry-After
// wins over the exponential schedule; both are capped at backoffMax.
func (e *Enricher) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := retryAfter
	if d <= 0 {
		d = e.backoffBase << attempt
		if d <= 0 {
			d = e.backoffMax
		}
	}
	if d > e.backoffMax {
		d = e.backoffMax
	}
	return d
}

func dedupe(ips []domain.IPKey) []domain.IPKey {
	seen := make(map[domain.IPKey]struct{}, len(ips))
	out := make([]domain.IPKey, 0, len(ips))
	for _, ip := range ips {
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}

func resultLabel(res *domain.EnrichmentResult) string {
	if res.OK() {
		return "ok"
	}
	return string(res.Failure.Reason)
}
