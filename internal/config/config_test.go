package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
)

// unsetForTest removes key for the duration of the test and restores it afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "single", cfg.Extractor.Mode)
	assert.Equal(t, "gemini", cfg.Extractor.Primary.Provider)
	assert.Equal(t, 120, cfg.Extractor.Primary.TimeoutSecs)
	assert.Equal(t, "ipinfo", cfg.Enrichment.Provider)
	assert.Equal(t, "https://ipinfo.io", cfg.Enrichment.BaseURL)
	assert.Equal(t, 15, cfg.Enrichment.TimeoutSecs)
	assert.Equal(t, 3, cfg.Enrichment.MaxRetries)
	assert.Equal(t, time.Second, cfg.Enrichment.BackoffBase)
	assert.Equal(t, "UTC", cfg.Timestamps.AssumeZone)
	assert.Equal(t, 10*time.Minute, cfg.Run.Timeout)
	assert.Equal(t, []string{"txt", "csv", "json", "pdf"}, cfg.Report.Formats)
	assert.Equal(t, "noop", cfg.Notify.Provider)
	assert.Nil(t, cfg.Extractor.SecondaryConfig())
	assert.Nil(t, cfg.Extractor.TertiaryConfig())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("IPANALYZER_EXTRACTOR_MODE", "fallback")
	t.Setenv("IPANALYZER_EXTRACTOR_SECONDARY_PROVIDER", "claude")
	t.Setenv("IPANALYZER_EXTRACTOR_SECONDARY_API_KEY", "sk-secondary")
	t.Setenv("IPANALYZER_ENRICHMENT_CONCURRENCY", "8")
	t.Setenv("IPANALYZER_ENRICHMENT_BASE_URL", "http://localhost:9999/")
	t.Setenv("IPANALYZER_TIMESTAMPS_ASSUME_ZONE", "Europe/Madrid")
	t.Setenv("IPANALYZER_NOTIFY_RECIPIENTS", "a@example.com, b@example.com")

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "fallback", cfg.Extractor.Mode)
	secondary := cfg.Extractor.SecondaryConfig()
	require.NotNil(t, secondary)
	assert.Equal(t, "claude", secondary.Provider)
	assert.Equal(t, "sk-secondary", secondary.APIKey)
	assert.Equal(t, 8, cfg.Enrichment.Concurrency)
	assert.Equal(t, "http://localhost:9999", cfg.Enrichment.BaseURL)
	assert.Equal(t, "Europe/Madrid", cfg.Timestamps.AssumeZone)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Recipients)
}

func TestLoadFrom_LegacyAliases(t *testing.T) {
	unsetForTest(t, "IPANALYZER_EXTRACTOR_PRIMARY_API_KEY")
	unsetForTest(t, "IPANALYZER_ENRICHMENT_TOKEN")
	t.Setenv("GEMINI_API_KEY", "gk-legacy")
	t.Setenv("IPINFO_TOKEN", "tok-legacy")

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "gk-legacy", cfg.Extractor.Primary.APIKey)
	assert.Equal(t, "tok-legacy", cfg.Enrichment.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_EnvFile(t *testing.T) {
	unsetForTest(t, "IPANALYZER_EXTRACTOR_PRIMARY_API_KEY")
	unsetForTest(t, "GEMINI_API_KEY")
	unsetForTest(t, "IPINFO_TOKEN")
	t.Setenv("IPANALYZER_ENRICHMENT_TOKEN", "from-env")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "GEMINI_API_KEY=gk-from-file\nIPINFO_TOKEN=tok-from-file\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	cfg, err := config.LoadFrom(envFile)
	require.NoError(t, err)

	assert.Equal(t, "gk-from-file", cfg.Extractor.Primary.APIKey)
	assert.Equal(t, "from-env", cfg.Enrichment.Token)
}

func TestLoadFrom_MissingEnvFileIgnored(t *testing.T) {
	_, err := config.LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := &config.Config{
		Extractor: config.ExtractorConfig{
			Primary:   config.ExtractorProviderConfig{Provider: "gemini"},
			Secondary: config.ExtractorProviderConfig{Provider: "openai"},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingCredentials))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "openai api_key")
	assert.Contains(t, err.Error(), "IPINFO_TOKEN")
}
