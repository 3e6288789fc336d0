// Package reporttest provides a report fixture for renderer tests.
package reporttest

import (
	"time"

	"github.com/google/uuid"

	"ipanalyzer/internal/domain"
)

// RunID is the run identifier used by Sample.
var RunID = uuid.MustParse("6f1c7a52-3b8e-4d2a-9c55-0e7d2b1f4a10")

// Sample returns a report with one enriched record, one private address and
// one invalid address, rendered in America/New_York.
func Sample() *domain.Report {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}

	google := domain.NewEnrichmentSuccess("8.8.8.8", &domain.IPInfo{
		IP:       "8.8.8.8",
		Hostname: "dns.google",
		City:     "Mountain View",
		Region:   "California",
		Country:  "US",
		Org:      "AS15169 Google LLC",
		ASN:      "AS15169",
		ISP:      "Google LLC",
	})

	return &domain.Report{
		Metadata: domain.RunMetadata{
			RunID:             RunID,
			SourceFileName:    "incident.log",
			SourceFileSHA256:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			SourceSizeBytes:   2048,
			AnalysisTimestamp: time.Date(2024, 8, 21, 12, 0, 0, 0, time.UTC),
			RequestedTimezone: "America/New_York",
			AppVersion:        "1.2.0",
			UserMetadata: []domain.MetadataPair{
				{Key: "case_id", Value: "2024-117"},
				{Key: "lead_investigator", Value: "Ana Ruiz"},
			},
		},
		Records: []domain.AnalysisRecord{
			{
				SequenceNumber:        1,
				IP:                    "8.8.8.8",
				IPText:                "8.8.8.8",
				OriginalTimestampText: "2024-08-21 10:00:00",
				Timestamp: domain.ParsedTimestamp{
					Status:      domain.TimestampParsed,
					Original:    "2024-08-21 10:00:00",
					Instant:     time.Date(2024, 8, 21, 10, 0, 0, 0, time.UTC),
					Location:    ny,
					AssumedZone: true,
				},
				Enrichment:   google,
				SourceOffset: 12,
			},
			{
				SequenceNumber: 2,
				IP:             "10.0.0.1",
				IPText:         "10.0.0.1",
				Timestamp:      domain.ParsedTimestamp{Status: domain.TimestampAbsent},
				Enrichment:     domain.NewEnrichmentFailure("10.0.0.1", domain.ReasonNotPublic, "private"),
				SourceOffset:   40,
			},
			{
				SequenceNumber:        3,
				IPText:                "999.1.1.1",
				OriginalTimestampText: "around lunch",
				Timestamp: domain.ParsedTimestamp{
					Status:   domain.TimestampUnparseable,
					Original: "around lunch",
					Reason:   "no layout matched",
				},
				Enrichment:   domain.NewEnrichmentFailure("", domain.ReasonInvalidIP, `invalid ip address "999.1.1.1"`),
				SourceOffset: 77,
			},
		},
		Stats: domain.RunStats{
			Duration:              1500 * time.Millisecond,
			ExtractionProvider:    "gemini",
			ExtractionModel:       "gemini-1.5-flash-latest",
			RawRecords:            3,
			Records:               3,
			UniqueIPs:             2,
			Enriched:              1,
			EnrichmentFailures:    map[domain.FailureReason]int{domain.ReasonNotPublic: 1, domain.ReasonInvalidIP: 1},
			InvalidIPs:            1,
			UnparseableTimestamps: 1,
			AssumedZoneTimestamps: 1,
		},
	}
}

// Empty returns a report with metadata and no records.
func Empty() *domain.Report {
	rep := Sample()
	rep.Records = []domain.AnalysisRecord{}
	rep.Stats = domain.RunStats{EnrichmentFailures: map[domain.FailureReason]int{}}
	return rep
}
