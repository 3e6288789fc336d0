package source

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ipanalyzer/internal/domain"
)

var lower = cases.Lower(language.Und)

// ParseMetadata turns "key=value" items into ordered metadata pairs. Keys are
// normalized to lower_snake_case and surrounding quotes are removed from
// values. A repeated key replaces the earlier value in place. Malformed items
// and keys reserved for run fields are skipped and reported as errors
// wrapping domain.ErrInvalidMetadata.
func ParseMetadata(items []string) ([]domain.MetadataPair, []error) {
	var (
		pairs []domain.MetadataPair
		errs  []error
		index = map[string]int{}
	)
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = NormalizeKey(key)
		value = unquote(strings.TrimSpace(value))
		if !ok || key == "" || value == "" {
			errs = append(errs, fmt.Errorf("%w: %q", domain.ErrInvalidMetadata, item))
			continue
		}
		if domain.IsReservedMetadataKey(key) {
			errs = append(errs, fmt.Errorf("%w: key %q is reserved", domain.ErrInvalidMetadata, key))
			continue
		}
		if i, seen := index[key]; seen {
			pairs[i].Value = value
			continue
		}
		index[key] = len(pairs)
		pairs = append(pairs, domain.MetadataPair{Key: key, Value: value})
	}
	return pairs, errs
}

// NormalizeKey lowercases key and joins its words with underscores.
func NormalizeKey(key string) string {
	return lower.String(strings.Join(strings.Fields(key), "_"))
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
