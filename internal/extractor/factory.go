package extractor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/port"
)

// ProviderFactory is a function that creates an Extractor from a provider config.
type ProviderFactory func(cfg *config.ExtractorProviderConfig) (port.Extractor, error)

// registry of provider factories, populated by init() in each provider package
// or explicitly via RegisterProvider.
var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates a single provider Extractor with retries and error
// classification applied.
func NewProvider(cfg *config.ExtractorProviderConfig, log zerolog.Logger) (port.Extractor, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %s", cfg.Provider)
	}
	inner, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s extractor: %w", cfg.Provider, err)
	}
	return NewRetrying(inner, cfg.Provider, cfg.MaxRetries, log), nil
}

// New builds the extractor described by cfg: a single provider, an ordered
// fallback chain, or two providers merged.
func New(cfg *config.ExtractorConfig, log zerolog.Logger) (port.Extractor, error) {
	primary, err := NewProvider(&cfg.Primary, log)
	if err != nil {
		return nil, err
	}

	var composite port.Extractor
	switch cfg.Mode {
	case "", "single":
		composite = primary
	case "fallback":
		extractors := []port.Extractor{primary}
		names := []string{cfg.Primary.Provider}
		for _, pc := range []*config.ExtractorProviderConfig{cfg.SecondaryConfig(), cfg.TertiaryConfig()} {
			if pc == nil {
				continue
			}
			e, err := NewProvider(pc, log)
			if err != nil {
				return nil, err
			}
			extractors = append(extractors, e)
			names = append(names, pc.Provider)
		}
		composite = NewFallbackExtractor(extractors, names, log)
	case "merge":
		sc := cfg.SecondaryConfig()
		if sc == nil {
			return nil, fmt.Errorf("extractor mode merge requires a secondary provider")
		}
		secondary, err := NewProvider(sc, log)
		if err != nil {
			return nil, err
		}
		composite = NewMergeExtractor(primary, secondary, log)
	default:
		return nil, fmt.Errorf("unknown extractor mode: %s", cfg.Mode)
	}

	return NewLimited(composite, cfg.MaxInputChars), nil
}

// CredentialCheckers builds the raw client of every configured provider, in
// primary, secondary, tertiary order, for credential probing.
func CredentialCheckers(cfg *config.ExtractorConfig) ([]port.CredentialChecker, error) {
	configured := []*config.ExtractorProviderConfig{&cfg.Primary, cfg.SecondaryConfig(), cfg.TertiaryConfig()}
	checkers := make([]port.CredentialChecker, 0, len(configured))
	for _, pc := range configured {
		if pc == nil {
			continue
		}
		providersMu.RLock()
		factory, ok := providers[pc.Provider]
		providersMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown extractor provider: %s", pc.Provider)
		}
		e, err := factory(pc)
		if err != nil {
			return nil, fmt.Errorf("creating %s extractor: %w", pc.Provider, err)
		}
		checker, ok := e.(port.CredentialChecker)
		if !ok {
			return nil, fmt.Errorf("extractor provider %s cannot check credentials", pc.Provider)
		}
		checkers = append(checkers, checker)
	}
	return checkers, nil
}
