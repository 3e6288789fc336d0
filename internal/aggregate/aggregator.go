package aggregate

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/ipkey"
	"ipanalyzer/internal/timestamp"
)

const missingEnrichmentDetail = "no enrichment result"

// Aggregator turns raw extraction output plus enrichment results into the
// ordered, de-duplicated report consumed by renderers.
type Aggregator struct {
	normalizer *timestamp.Normalizer
	log        zerolog.Logger
}

// New creates an Aggregator that normalizes timestamps with n.
func New(n *timestamp.Normalizer, log zerolog.Logger) *Aggregator {
	return &Aggregator{normalizer: n, log: log}
}

// Keys returns the distinct valid IPKeys in records, in first-appearance order.
func (a *Aggregator) Keys(records []domain.RawRecord) []domain.IPKey {
	seen := make(map[domain.IPKey]struct{}, len(records))
	keys := make([]domain.IPKey, 0, len(records))
	for _, r := range records {
		k, err := ipkey.Canonicalize(r.IPText)
		if err != nil {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// candidate is a raw record with its canonical key and source position.
type candidate struct {
	raw    domain.RawRecord
	key    domain.IPKey
	keyErr error
	offset int
}

type dedupKey struct {
	ip string
	ts string
}

// Aggregate builds the final report. Records are ordered by where their
// address first appears in sourceText; exact duplicate (ip, timestamp) pairs
// are dropped, keeping the first. Every record with the same IPKey shares one
// *domain.EnrichmentResult.
func (a *Aggregator) Aggregate(
	records []domain.RawRecord,
	sourceText string,
	enrichments map[domain.IPKey]*domain.EnrichmentResult,
	meta domain.RunMetadata,
) *domain.Report {
	cands := a.locate(records, sourceText)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].offset < cands[j].offset })

	var (
		out       = make([]domain.AnalysisRecord, 0, len(cands))
		seen      = make(map[dedupKey]struct{}, len(cands))
		invalid   = make(map[string]*domain.EnrichmentResult)
		missing   = make(map[domain.IPKey]*domain.EnrichmentResult)
		stats     = domain.RunStats{RawRecords: len(records), EnrichmentFailures: map[domain.FailureReason]int{}}
		uniqueIPs = make(map[domain.IPKey]*domain.EnrichmentResult)
	)

	for _, c := range cands {
		ipText := strings.TrimSpace(c.raw.IPText)
		tsText := strings.TrimSpace(c.raw.TimestampText)

		dk := dedupKey{ip: string(c.key), ts: tsText}
		if c.keyErr != nil {
			dk.ip = "invalid:" + ipText
		}
		if _, dup := seen[dk]; dup {
			continue
		}
		seen[dk] = struct{}{}

		rec := domain.AnalysisRecord{
			SequenceNumber:        len(out) + 1,
			IP:                    c.key,
			IPText:                ipText,
			OriginalTimestampText: tsText,
			Timestamp:             a.normalizer.Normalize(tsText, c.raw.HasTimestamp),
			SourceOffset:          c.offset,
		}

		switch {
		case c.keyErr != nil:
			res, ok := invalid[ipText]
			if !ok {
				res = domain.NewEnrichmentFailure("", domain.ReasonInvalidIP, c.keyErr.Error())
				invalid[ipText] = res
			}
			rec.Enrichment = res
			stats.InvalidIPs++
		default:
			res, ok := enrichments[c.key]
			if !ok || res == nil {
				if res, ok = missing[c.key]; !ok {
					res = domain.NewEnrichmentFailure(c.key, domain.ReasonUpstreamError, missingEnrichmentDetail)
					missing[c.key] = res
					a.log.Warn().Str("ip", string(c.key)).Msg("aggregate.Aggregator: no enrichment result for address")
				}
			}
			rec.Enrichment = res
			uniqueIPs[c.key] = res
		}

		switch rec.Timestamp.Status {
		case domain.TimestampUnparseable:
			stats.UnparseableTimestamps++
		case domain.TimestampParsed:
			if rec.Timestamp.AssumedZone {
				stats.AssumedZoneTimestamps++
			}
		}

		out = append(out, rec)
	}

	stats.Records = len(out)
	stats.UniqueIPs = len(uniqueIPs)
	for _, res := range uniqueIPs {
		if res.OK() {
			stats.Enriched++
		} else {
			stats.EnrichmentFailures[res.Failure.Reason]++
		}
	}
	if len(invalid) > 0 {
		stats.EnrichmentFailures[domain.ReasonInvalidIP] = len(invalid)
	}

	return &domain.Report{
		Metadata: meta,
		Records:  out,
		Stats:    stats,
	}
}

// locate canonicalizes each record and assigns its source offset. A record
// whose address cannot be found inherits the previous record's offset, which
// keeps it next to its neighbour in model order.
func (a *Aggregator) locate(records []domain.RawRecord, sourceText string) []candidate {
	loc := newLocator(sourceText)
	cands := make([]candidate, 0, len(records))
	prev := 0
	for _, r := range records {
		c := candidate{raw: r}
		c.key, c.keyErr = ipkey.Canonicalize(r.IPText)

		needles := []string{strings.TrimSpace(r.IPText)}
		if c.keyErr == nil && string(c.key) != needles[0] {
			needles = append(needles, string(c.key))
		}
		if off, ok := loc.find(needles...); ok {
			c.offset = off
		} else {
			c.offset = prev
		}
		prev = c.offset
		cands = append(cands, c)
	}
	return cands
}
