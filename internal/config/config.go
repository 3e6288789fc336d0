package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"ipanalyzer/internal/domain"
)

var (
	// ApplicationName is the binary name reported in logs and metadata.
	ApplicationName = "ipanalyzer"
	// ApplicationVersion is overridden at build time with -ldflags.
	ApplicationVersion = "1.2.0"
)

// Config holds all application configuration.
type Config struct {
	Extractor  ExtractorConfig
	Enrichment EnrichmentConfig
	Timestamps TimestampConfig
	Run        RunConfig
	Log        LogConfig
	Report     ReportConfig
	Publish    PublishConfig
	Notify     NotifyConfig
	Server     ServerConfig
	Auth       AuthConfig
}

// ExtractorProviderConfig holds settings for a single LLM extraction provider.
type ExtractorProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ExtractorConfig holds language-model extraction settings with multi-provider support.
type ExtractorConfig struct {
	// Mode is "single", "fallback" or "merge".
	Mode          string `mapstructure:"mode"`
	MaxInputChars int    `mapstructure:"max_input_chars"`

	Primary   ExtractorProviderConfig `mapstructure:"primary"`
	Secondary ExtractorProviderConfig `mapstructure:"secondary"`
	Tertiary  ExtractorProviderConfig `mapstructure:"tertiary"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (e *ExtractorConfig) SecondaryConfig() *ExtractorProviderConfig {
	if e.Secondary.Provider != "" {
		return &e.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (e *ExtractorConfig) TertiaryConfig() *ExtractorProviderConfig {
	if e.Tertiary.Provider != "" {
		return &e.Tertiary
	}
	return nil
}

// EnrichmentConfig holds IP lookup settings.
type EnrichmentConfig struct {
	Provider          string        `mapstructure:"provider"`
	Token             string        `mapstructure:"token"`
	BaseURL           string        `mapstructure:"base_url"`
	TimeoutSecs       int           `mapstructure:"timeout_secs"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
}

// TimestampConfig holds timestamp normalization settings.
type TimestampConfig struct {
	// AssumeZone is applied to timestamps that carry no offset.
	AssumeZone  string `mapstructure:"assume_zone"`
	DefaultZone string `mapstructure:"default_zone"`
	DayFirst    bool   `mapstructure:"day_first"`
}

// RunConfig holds per-run limits.
type RunConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxFileSizeMB int64         `mapstructure:"max_file_size_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig holds report rendering defaults.
type ReportConfig struct {
	Formats   []string `mapstructure:"formats"`
	OutputDir string   `mapstructure:"output_dir"`
}

// PublishConfig holds S3 report publishing settings.
type PublishConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// LinkExpiry is how long presigned report links stay valid.
	LinkExpiry time.Duration `mapstructure:"link_expiry"`
}

// NotifyConfig holds run summary e-mail settings.
type NotifyConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`

	// AllowedOrigins lists browser origins accepted by the CORS middleware.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds bearer-token validation settings for the HTTP API.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// Load reads configuration from the environment and an optional .env file
// found in the working directory or next to the executable.
func Load() (*Config, error) {
	return LoadFrom(findEnvFile())
}

// LoadFrom reads configuration from environment variables with the
// IPANALYZER_ prefix after loading envFile, if non-empty. Variables already
// present in the environment win over the file.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("IPANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Extractor defaults
	v.SetDefault("extractor.mode", "single")
	v.SetDefault("extractor.max_input_chars", 500000)
	v.SetDefault("extractor.primary.provider", "gemini")
	v.SetDefault("extractor.primary.api_key", "")
	v.SetDefault("extractor.primary.default_model", "")
	v.SetDefault("extractor.primary.max_retries", 2)
	v.SetDefault("extractor.primary.timeout_secs", 120)
	v.SetDefault("extractor.secondary.provider", "")
	v.SetDefault("extractor.secondary.api_key", "")
	v.SetDefault("extractor.secondary.default_model", "")
	v.SetDefault("extractor.secondary.max_retries", 2)
	v.SetDefault("extractor.secondary.timeout_secs", 120)
	v.SetDefault("extractor.tertiary.provider", "")
	v.SetDefault("extractor.tertiary.api_key", "")
	v.SetDefault("extractor.tertiary.default_model", "")
	v.SetDefault("extractor.tertiary.max_retries", 2)
	v.SetDefault("extractor.tertiary.timeout_secs", 120)

	// Enrichment defaults
	v.SetDefault("enrichment.provider", "ipinfo")
	v.SetDefault("enrichment.token", "")
	v.SetDefault("enrichment.base_url", "https://ipinfo.io")
	v.SetDefault("enrichment.timeout_secs", 15)
	v.SetDefault("enrichment.concurrency", 4)
	v.SetDefault("enrichment.requests_per_second", 10)
	v.SetDefault("enrichment.burst", 1)
	v.SetDefault("enrichment.max_retries", 3)
	v.SetDefault("enrichment.backoff_base", "1s")
	v.SetDefault("enrichment.backoff_max", "30s")

	// Timestamp defaults
	v.SetDefault("timestamps.assume_zone", "UTC")
	v.SetDefault("timestamps.default_zone", "UTC")
	v.SetDefault("timestamps.day_first", false)

	// Run defaults
	v.SetDefault("run.timeout", "10m")
	v.SetDefault("run.max_file_size_mb", 20)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Report defaults
	v.SetDefault("report.formats", "txt,csv,json,pdf")
	v.SetDefault("report.output_dir", ".")

	// Publish defaults
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.region", "us-east-1")
	v.SetDefault("publish.bucket", "ipanalyzer-reports")
	v.SetDefault("publish.prefix", "reports")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.link_expiry", "72h")

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "noreply@ipanalyzer.local")
	v.SetDefault("notify.from_name", "IP Analyzer")
	v.SetDefault("notify.recipients", "")

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "ipanalyzer")

	// Bind environment variables explicitly for nested keys. The unprefixed
	// names are the ones used by the .env files of earlier releases.
	envBindings := map[string][]string{
		"extractor.mode":                    {"IPANALYZER_EXTRACTOR_MODE"},
		"extractor.max_input_chars":         {"IPANALYZER_EXTRACTOR_MAX_INPUT_CHARS"},
		"extractor.primary.provider":        {"IPANALYZER_EXTRACTOR_PRIMARY_PROVIDER"},
		"extractor.primary.api_key":         {"IPANALYZER_EXTRACTOR_PRIMARY_API_KEY", "GEMINI_API_KEY"},
		"extractor.primary.default_model":   {"IPANALYZER_EXTRACTOR_PRIMARY_DEFAULT_MODEL"},
		"extractor.primary.max_retries":     {"IPANALYZER_EXTRACTOR_PRIMARY_MAX_RETRIES"},
		"extractor.primary.timeout_secs":    {"IPANALYZER_EXTRACTOR_PRIMARY_TIMEOUT_SECS"},
		"extractor.secondary.provider":      {"IPANALYZER_EXTRACTOR_SECONDARY_PROVIDER"},
		"extractor.secondary.api_key":       {"IPANALYZER_EXTRACTOR_SECONDARY_API_KEY"},
		"extractor.secondary.default_model": {"IPANALYZER_EXTRACTOR_SECONDARY_DEFAULT_MODEL"},
		"extractor.secondary.max_retries":   {"IPANALYZER_EXTRACTOR_SECONDARY_MAX_RETRIES"},
		"extractor.secondary.timeout_secs":  {"IPANALYZER_EXTRACTOR_SECONDARY_TIMEOUT_SECS"},
		"extractor.tertiary.provider":       {"IPANALYZER_EXTRACTOR_TERTIARY_PROVIDER"},
		"extractor.tertiary.api_key":        {"IPANALYZER_EXTRACTOR_TERTIARY_API_KEY"},
		"extractor.tertiary.default_model":  {"IPANALYZER_EXTRACTOR_TERTIARY_DEFAULT_MODEL"},
		"extractor.tertiary.max_retries":    {"IPANALYZER_EXTRACTOR_TERTIARY_MAX_RETRIES"},
		"extractor.tertiary.timeout_secs":   {"IPANALYZER_EXTRACTOR_TERTIARY_TIMEOUT_SECS"},
		"enrichment.provider":               {"IPANALYZER_ENRICHMENT_PROVIDER"},
		"enrichment.token":                  {"IPANALYZER_ENRICHMENT_TOKEN", "IPINFO_TOKEN"},
		"enrichment.base_url":               {"IPANALYZER_ENRICHMENT_BASE_URL"},
		"enrichment.timeout_secs":           {"IPANALYZER_ENRICHMENT_TIMEOUT_SECS"},
		"enrichment.concurrency":            {"IPANALYZER_ENRICHMENT_CONCURRENCY"},
		"enrichment.requests_per_second":    {"IPANALYZER_ENRICHMENT_REQUESTS_PER_SECOND"},
		"enrichment.burst":                  {"IPANALYZER_ENRICHMENT_BURST"},
		"enrichment.max_retries":            {"IPANALYZER_ENRICHMENT_MAX_RETRIES"},
		"enrichment.backoff_base":           {"IPANALYZER_ENRICHMENT_BACKOFF_BASE"},
		"enrichment.backoff_max":            {"IPANALYZER_ENRICHMENT_BACKOFF_MAX"},
		"timestamps.assume_zone":            {"IPANALYZER_TIMESTAMPS_ASSUME_ZONE"},
		"timestamps.default_zone":           {"IPANALYZER_TIMESTAMPS_DEFAULT_ZONE", "DEFAULT_TZ"},
		"timestamps.day_first":              {"IPANALYZER_TIMESTAMPS_DAY_FIRST"},
		"run.timeout":                       {"IPANALYZER_RUN_TIMEOUT"},
		"run.max_file_size_mb":              {"IPANALYZER_RUN_MAX_FILE_SIZE_MB"},
		"log.level":                         {"IPANALYZER_LOG_LEVEL"},
		"log.format":                        {"IPANALYZER_LOG_FORMAT"},
		"report.formats":                    {"IPANALYZER_REPORT_FORMATS"},
		"report.output_dir":                 {"IPANALYZER_REPORT_OUTPUT_DIR"},
		"publish.enabled":                   {"IPANALYZER_PUBLISH_ENABLED"},
		"publish.region":                    {"IPANALYZER_PUBLISH_REGION"},
		"publish.bucket":                    {"IPANALYZER_PUBLISH_BUCKET"},
		"publish.prefix":                    {"IPANALYZER_PUBLISH_PREFIX"},
		"publish.endpoint":                  {"IPANALYZER_PUBLISH_ENDPOINT"},
		"publish.access_key":                {"IPANALYZER_PUBLISH_ACCESS_KEY"},
		"publish.secret_key":                {"IPANALYZER_PUBLISH_SECRET_KEY"},
		"publish.link_expiry":               {"IPANALYZER_PUBLISH_LINK_EXPIRY"},
		"notify.provider":                   {"IPANALYZER_NOTIFY_PROVIDER"},
		"notify.region":                     {"IPANALYZER_NOTIFY_REGION"},
		"notify.from_address":               {"IPANALYZER_NOTIFY_FROM_ADDRESS"},
		"notify.from_name":                  {"IPANALYZER_NOTIFY_FROM_NAME"},
		"notify.recipients":                 {"IPANALYZER_NOTIFY_RECIPIENTS"},
		"server.port":                       {"IPANALYZER_SERVER_PORT"},
		"server.read_timeout":               {"IPANALYZER_SERVER_READ_TIMEOUT"},
		"server.write_timeout":              {"IPANALYZER_SERVER_WRITE_TIMEOUT"},
		"server.environment":                {"IPANALYZER_SERVER_ENVIRONMENT"},
		"server.allowed_origins":            {"IPANALYZER_SERVER_ALLOWED_ORIGINS"},
		"auth.jwt_secret":                   {"IPANALYZER_AUTH_JWT_SECRET"},
		"auth.issuer":                       {"IPANALYZER_AUTH_ISSUER"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	cfg := &Config{}

	cfg.Extractor = ExtractorConfig{
		Mode:          v.GetString("extractor.mode"),
		MaxInputChars: v.GetInt("extractor.max_input_chars"),
		Primary:       providerConfig(v, "extractor.primary"),
		Secondary:     providerConfig(v, "extractor.secondary"),
		Tertiary:      providerConfig(v, "extractor.tertiary"),
	}
	cfg.Enrichment = EnrichmentConfig{
		Provider:          v.GetString("enrichment.provider"),
		Token:             v.GetString("enrichment.token"),
		BaseURL:           strings.TrimRight(v.GetString("enrichment.base_url"), "/"),
		TimeoutSecs:       v.GetInt("enrichment.timeout_secs"),
		Concurrency:       v.GetInt("enrichment.concurrency"),
		RequestsPerSecond: v.GetFloat64("enrichment.requests_per_second"),
		Burst:             v.GetInt("enrichment.burst"),
		MaxRetries:        v.GetInt("enrichment.max_retries"),
		BackoffBase:       v.GetDuration("enrichment.backoff_base"),
		BackoffMax:        v.GetDuration("enrichment.backoff_max"),
	}
	cfg.Timestamps = TimestampConfig{
		AssumeZone:  v.GetString("timestamps.assume_zone"),
		DefaultZone: v.GetString("timestamps.default_zone"),
		DayFirst:    v.GetBool("timestamps.day_first"),
	}
	cfg.Run = RunConfig{
		Timeout:       v.GetDuration("run.timeout"),
		MaxFileSizeMB: v.GetInt64("run.max_file_size_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Report = ReportConfig{
		Formats:   splitList(v.GetString("report.formats")),
		OutputDir: v.GetString("report.output_dir"),
	}
	cfg.Publish = PublishConfig{
		Enabled:    v.GetBool("publish.enabled"),
		Region:     v.GetString("publish.region"),
		Bucket:     v.GetString("publish.bucket"),
		Prefix:     strings.Trim(v.GetString("publish.prefix"), "/"),
		Endpoint:   v.GetString("publish.endpoint"),
		AccessKey:  v.GetString("publish.access_key"),
		SecretKey:  v.GetString("publish.secret_key"),
		LinkExpiry: v.GetDuration("publish.link_expiry"),
	}
	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		FromName:    v.GetString("notify.from_name"),
		Recipients:  splitList(v.GetString("notify.recipients")),
	}

	// Railway/Heroku/Render set a PORT env var. Use it if IPANALYZER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("IPANALYZER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}
	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),

		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("auth.jwt_secret"),
		Issuer:    v.GetString("auth.issuer"),
	}

	return cfg, nil
}

// Validate reports missing credentials for the configured providers.
func (c *Config) Validate() error {
	var missing []string
	if c.Extractor.Primary.APIKey == "" {
		missing = append(missing, "extractor.primary.api_key (GEMINI_API_KEY)")
	}
	for _, p := range []*ExtractorProviderConfig{c.Extractor.SecondaryConfig(), c.Extractor.TertiaryConfig()} {
		if p != nil && p.APIKey == "" {
			missing = append(missing, p.Provider+" api_key")
		}
	}
	if c.Enrichment.Token == "" {
		missing = append(missing, "enrichment.token (IPINFO_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func providerConfig(v *viper.Viper, prefix string) ExtractorProviderConfig {
	return ExtractorProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		MaxRetries:   v.GetInt(prefix + ".max_retries"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func findEnvFile() string {
	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(exe), ".env")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
