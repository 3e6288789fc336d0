package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/port"
)

// MergeExtractor wraps two Extractors, runs both in parallel, and merges results.
type MergeExtractor struct {
	primary   port.Extractor
	secondary port.Extractor
	log       zerolog.Logger
}

// NewMergeExtractor creates a MergeExtractor from primary and secondary extractors.
func NewMergeExtractor(primary, secondary port.Extractor, log zerolog.Logger) *MergeExtractor {
	return &MergeExtractor{primary: primary, secondary: secondary, log: log}
}

func (m *MergeExtractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	type result struct {
		output *port.ExtractOutput
		err    error
	}

	var wg sync.WaitGroup
	primaryCh := make(chan result, 1)
	secondaryCh := make(chan result, 1)

	wg.Add(2)
	go func() {
		defer wg.Done()
		out, err := m.primary.Extract(ctx, input)
		primaryCh <- result{out, err}
	}()
	go func() {
		defer wg.Done()
		out, err := m.secondary.Extract(ctx, input)
		secondaryCh <- result{out, err}
	}()

	wg.Wait()
	close(primaryCh)
	close(secondaryCh)

	pResult := <-primaryCh
	sResult := <-secondaryCh

	// Both failed
	if pResult.err != nil && sResult.err != nil {
		return nil, domain.NewExtractionError(extractionKind(pResult.err), "merge",
			fmt.Errorf("both extractors failed: primary: %v; secondary: %v", pResult.err, sResult.err))
	}

	// Only secondary succeeded
	if pResult.err != nil {
		m.log.Warn().Err(pResult.err).Msg("extractor.MergeExtractor: primary failed, using secondary only")
		return sResult.output, nil
	}

	// Only primary succeeded
	if sResult.err != nil {
		m.log.Warn().Err(sResult.err).Msg("extractor.MergeExtractor: secondary failed, using primary only")
		return pResult.output, nil
	}

	return mergeOutputs(pResult.output, sResult.output), nil
}

// mergeOutputs keeps every primary record in order and appends the secondary
// records the primary did not report. Multiplicity is preserved: a pair the
// secondary reports three times and the primary once contributes two extra
// records.
func mergeOutputs(primary, secondary *port.ExtractOutput) *port.ExtractOutput {
	type pair struct{ ip, ts string }

	seen := make(map[pair]int, len(primary.Records))
	merged := make([]domain.RawRecord, 0, len(primary.Records)+len(secondary.Records))
	for _, r := range primary.Records {
		seen[pair{r.IPText, r.TimestampText}]++
		merged = append(merged, r)
	}
	for _, r := range secondary.Records {
		k := pair{r.IPText, r.TimestampText}
		if seen[k] > 0 {
			seen[k]--
			continue
		}
		merged = append(merged, r)
	}

	return &port.ExtractOutput{
		Records:    merged,
		Provider:   primary.Provider + "+" + secondary.Provider,
		ModelUsed:  primary.ModelUsed + "+" + secondary.ModelUsed,
		PromptUsed: primary.PromptUsed,
	}
}

func extractionKind(err error) domain.ExtractionFailureKind {
	var extErr *domain.ExtractionError
	if errors.As(AsExtractionError("", err), &extErr) {
		return extErr.Kind
	}
	return domain.ExtractionUnreachable
}
