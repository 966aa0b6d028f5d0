package common

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/driveline/jobfeed/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Scrapers    ScrapersConfig    `toml:"scrapers"`
	LinkTracker LinkTrackerConfig `toml:"link_tracker"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
	LLM         LLMConfig         `toml:"llm"`
}

type StorageConfig struct {
	Type      string         `toml:"type"` // Only "badger" is supported
	Badger    BadgerConfig   `toml:"badger"`
	Snapshots SnapshotConfig `toml:"snapshots"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SnapshotConfig controls per-stage frame checkpoints
type SnapshotConfig struct {
	Dir     string `toml:"dir"`     // Directory for stage snapshots (default: "./snapshots")
	Enabled bool   `toml:"enabled"` // Write a snapshot after every pipeline stage
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// PipelineConfig contains tuning knobs for the canonical-table pipeline
type PipelineConfig struct {
	QualityYieldRate      float64 `toml:"quality_yield_rate" validate:"gt=0,lte=1"` // Estimated share of scraped jobs that classify good/so-so (default: 0.15)
	MemoryWindowHours     int     `toml:"memory_window_hours" validate:"gt=0"`      // Freshness window for the credit controller (default: 96)
	ReuseWindowHours      int     `toml:"reuse_window_hours" validate:"gt=0"`       // Lookback window for classification reuse (default: 720)
	BatchSize             int     `toml:"batch_size" validate:"gt=0"`               // Jobs per LLM call (default: 25)
	MaxConcurrentBatches  int     `toml:"max_concurrent_batches" validate:"gt=0"`   // In-flight LLM batches ceiling (default: 12)
	SourceTimeout         string  `toml:"source_timeout"`                           // Per-source scrape timeout (default: "5m")
	BatchTimeout          string  `toml:"batch_timeout"`                            // Per-batch classification timeout (default: "45s")
	StoreTimeout          string  `toml:"store_timeout"`                            // Memory store query timeout (default: "10s")
	RefreshSchedule       string  `toml:"refresh_schedule"`                         // Optional cron schedule for market refresh runs
	CostPerIndeedJob      float64 `toml:"cost_per_indeed_job"`                      // Scrape cost per Indeed-sourced job (default: 0.005)
	CostPerGoogleQuery    float64 `toml:"cost_per_google_query"`                    // Scrape cost per Google Jobs query (default: 0.003)
	CostPerClassification float64 `toml:"cost_per_classification"`                  // LLM cost per classified job (default: 0.0003)
}

type ScrapersConfig struct {
	Outscraper ScraperEndpointConfig `toml:"outscraper"`
	Google     ScraperEndpointConfig `toml:"google"`
}

// ScraperEndpointConfig configures one external scraping provider
type ScraperEndpointConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Timeout           string  `toml:"timeout"`             // e.g. "5m" - provider calls are minutes-scale
	RequestsPerSecond float64 `toml:"requests_per_second"` // Outbound rate limit (default: 1.0)
	MaxRetries        int     `toml:"max_retries"`
}

// LinkTrackerConfig configures the URL-shortening facade
type LinkTrackerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Domain  string `toml:"domain"`  // Short-link domain
	Timeout string `toml:"timeout"` // e.g. "10s"
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type LLMConfig struct {
	DefaultProvider   string `toml:"default_provider" validate:"oneof=claude gemini"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// DefaultConfig returns the baseline configuration before file and env overlays
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/jobfeed",
			},
			Snapshots: SnapshotConfig{
				Dir:     "./snapshots",
				Enabled: true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
		Pipeline: PipelineConfig{
			QualityYieldRate:      0.15,
			MemoryWindowHours:     96,
			ReuseWindowHours:      720,
			BatchSize:             25,
			MaxConcurrentBatches:  12,
			SourceTimeout:         "5m",
			BatchTimeout:          "45s",
			StoreTimeout:          "10s",
			CostPerIndeedJob:      0.005,
			CostPerGoogleQuery:    0.003,
			CostPerClassification: 0.0003,
		},
		Scrapers: ScrapersConfig{
			Outscraper: ScraperEndpointConfig{
				BaseURL:           "https://api.outscraper.cloud",
				Timeout:           "5m",
				RequestsPerSecond: 1.0,
				MaxRetries:        3,
			},
			Google: ScraperEndpointConfig{
				BaseURL:           "https://serpapi.com",
				Timeout:           "5m",
				RequestsPerSecond: 1.0,
				MaxRetries:        3,
			},
		},
		LinkTracker: LinkTrackerConfig{
			BaseURL: "https://api.short.io",
			Timeout: "10s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Timeout:     "60s",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "60s",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		LLM: LLMConfig{
			DefaultProvider:   "claude",
			RequestsPerMinute: 60,
		},
	}
}

// LoadFromFiles loads configuration from defaults, then overlays each TOML file
// in order, then applies environment variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies JOBFEED_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("JOBFEED_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("JOBFEED_SNAPSHOT_DIR"); v != "" {
		config.Storage.Snapshots.Dir = v
	}
	if v := os.Getenv("JOBFEED_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("JOBFEED_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("JOBFEED_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("JOBFEED_OUTSCRAPER_API_KEY"); v != "" {
		config.Scrapers.Outscraper.APIKey = v
	}
	if v := os.Getenv("JOBFEED_GOOGLE_SCRAPER_API_KEY"); v != "" {
		config.Scrapers.Google.APIKey = v
	}
	if v := os.Getenv("JOBFEED_LINKTRACKER_API_KEY"); v != "" {
		config.LinkTracker.APIKey = v
	}
}

// Validate checks structural constraints and duration/cron formats
func Validate(config *Config) error {
	if config.Storage.Type != "badger" && config.Storage.Type != "" {
		return fmt.Errorf("unsupported storage type: %s (only 'badger' is supported)", config.Storage.Type)
	}

	v := validator.New()
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"pipeline.source_timeout": config.Pipeline.SourceTimeout,
		"pipeline.batch_timeout":  config.Pipeline.BatchTimeout,
		"pipeline.store_timeout":  config.Pipeline.StoreTimeout,
		"claude.timeout":          config.Claude.Timeout,
		"gemini.timeout":          config.Gemini.Timeout,
		"link_tracker.timeout":    config.LinkTracker.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if config.Pipeline.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(config.Pipeline.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid pipeline.refresh_schedule: %w", err)
		}
	}

	return nil
}

// ParseDurationOr parses a duration string, falling back to a default on error
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves an API key with env-first precedence:
// environment variable, then KV store, then config fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"anthropic_api_key":      {"JOBFEED_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini_api_key":         {"JOBFEED_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"outscraper_api_key":     {"JOBFEED_OUTSCRAPER_API_KEY"},
		"google_scraper_api_key": {"JOBFEED_GOOGLE_SCRAPER_API_KEY"},
		"linktracker_api_key":    {"JOBFEED_LINKTRACKER_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key %q not found in environment, KV store, or config", name)
}
