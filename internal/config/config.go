// Package config defines the run configuration and its loading hooks.
//
// Conventions:
// - Keys are flat snake_case, matching the koanf tags below.
// - New(ctx) returns defaults; Load(ctx) layers .env, YAML file and env vars on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"time"
)

// Failure policies for the ticker worker pool.
const (
	FailFast = "fail_fast"
	Continue = "continue"
)

// Constituent change-log replay orders.
const (
	ReplayChronological = "chronological"
	ReplaySource        = "source"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheBadger = "badger"
)

// AI providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

const dateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// StatusAddr is the listen address of the status API; empty disables it.
	StatusAddr string `koanf:"status_addr"`

	DataBaseURL     string        `koanf:"data_base_url"`
	DataAPIKey      string        `koanf:"data_api_key"`
	DataConcurrency int           `koanf:"data_concurrency"`
	FetchMaxRetries int           `koanf:"fetch_max_retries"`
	FetchBackoff    time.Duration `koanf:"fetch_backoff_unit"`
	HTTPTimeout     time.Duration `koanf:"http_timeout"`
	// BenchmarkSymbol is the index whose closes are paired with every price observation.
	BenchmarkSymbol string `koanf:"benchmark_symbol"`

	AIProvider    string  `koanf:"ai_provider"`
	AIEndpoint    string  `koanf:"ai_endpoint"`
	AIKey         string  `koanf:"ai_key"`
	AIModel       string  `koanf:"ai_model"`
	AIMaxTokens   int     `koanf:"ai_max_tokens"`
	AITemperature float32 `koanf:"ai_temperature"`
	AITopP        float32 `koanf:"ai_top_p"`
	AIConcurrency int     `koanf:"ai_concurrency"`
	// AITokensPerSecond and AIBurst parameterize the AI token bucket.
	AITokensPerSecond float64 `koanf:"ai_tokens_per_second"`
	AIBurst           float64 `koanf:"ai_max_tokens_burst"`
	AIMaxRetries      int     `koanf:"ai_max_retries"`
	// AIConstrainedModels lists models whose transcripts are truncated to AITranscriptLimit characters.
	AIConstrainedModels []string `koanf:"ai_constrained_models"`
	AITranscriptLimit   int      `koanf:"ai_transcript_char_limit"`
	// PromptsDir overrides the embedded system prompts when set.
	PromptsDir string `koanf:"prompts_dir"`

	StartDate            string `koanf:"start_date"`
	EndDate              string `koanf:"end_date"`
	OnlyLatest           bool   `koanf:"only_latest"`
	LatestLookbackMonths int    `koanf:"latest_lookback_months"`
	EPSHistoryQuarters   int    `koanf:"eps_history_quarters"`

	UseCache     bool   `koanf:"use_cache"`
	CacheBackend string `koanf:"cache_backend"`
	CacheDir     string `koanf:"cache_dir"`
	OutDir       string `koanf:"out_dir"`

	MaxConcurrentTickers int      `koanf:"max_concurrent_tickers"`
	FailurePolicy        string   `koanf:"failure_policy"`
	ReplayOrder          string   `koanf:"replay_order"`
	Blacklist            []string `koanf:"blacklist"`
	// Tickers replaces universe resolution when non-empty.
	Tickers []string `koanf:"tickers"`

	// Schedule is a cron expression; when set the process stays up and re-runs.
	Schedule string `koanf:"schedule"`
}

// Window is the inclusive analysis date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		DataBaseURL:          "https://financialmodelingprep.com/api",
		DataConcurrency:      5,
		FetchMaxRetries:      3,
		FetchBackoff:         time.Second,
		HTTPTimeout:          30 * time.Second,
		BenchmarkSymbol:      "^GSPC",
		AIProvider:           ProviderAzure,
		AIModel:              "gpt-4o",
		AIMaxTokens:          4096,
		AITemperature:        0.2,
		AITopP:               0.95,
		AIConcurrency:        3,
		AITokensPerSecond:    3,
		AIBurst:              10,
		AIMaxRetries:         5,
		AIConstrainedModels:  []string{"gpt-35-turbo"},
		AITranscriptLimit:    16000,
		LatestLookbackMonths: 4,
		EPSHistoryQuarters:   8,
		UseCache:             true,
		CacheBackend:         CacheFile,
		CacheDir:             "cache",
		OutDir:               "out",
		MaxConcurrentTickers: 3,
		FailurePolicy:        FailFast,
		ReplayOrder:          ReplayChronological,
		Blacklist:            []string{"EXC", "COTY"},
	}
}

// Window resolves the analysis range. In latest-only mode the range ends at
// now and starts LatestLookbackMonths earlier.
func (c *Config) Window(now time.Time) (Window, error) {
	if c.OnlyLatest {
		end := truncateDay(now)
		return Window{Start: end.AddDate(0, -c.LatestLookbackMonths, 0), End: end}, nil
	}
	start, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start_date %q: %v", ErrInvalidConfig, c.StartDate, err)
	}
	end, err := time.Parse(dateLayout, c.EndDate)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end_date %q: %v", ErrInvalidConfig, c.EndDate, err)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end_date %s before start_date %s", ErrInvalidConfig, c.EndDate, c.StartDate)
	}
	return Window{Start: start, End: end}, nil
}

// Constrained reports whether the configured model needs truncated transcripts.
func (c *Config) Constrained() bool {
	for _, m := range c.AIConstrainedModels {
		if m == c.AIModel {
			return true
		}
	}
	return false
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	switch {
	case c.DataAPIKey == "":
		return fmt.Errorf("%w: data_api_key must be set", ErrInvalidConfig)
	case c.AIKey == "":
		return fmt.Errorf("%w: ai_key must be set", ErrInvalidConfig)
	case c.AIProvider == ProviderAzure && c.AIEndpoint == "":
		return fmt.Errorf("%w: ai_endpoint is required for the azure provider", ErrInvalidConfig)
	case c.AIProvider != ProviderAzure && c.AIProvider != ProviderOpenAI:
		return fmt.Errorf("%w: unknown ai_provider %q", ErrInvalidConfig, c.AIProvider)
	case c.DataConcurrency < 1, c.AIConcurrency < 1, c.MaxConcurrentTickers < 1:
		return fmt.Errorf("%w: concurrency limits must be positive", ErrInvalidConfig)
	case c.FetchMaxRetries < 1, c.AIMaxRetries < 1:
		return fmt.Errorf("%w: retry limits must be positive", ErrInvalidConfig)
	case c.AITokensPerSecond <= 0, c.AIBurst < 1:
		return fmt.Errorf("%w: token bucket needs a positive rate and a burst of at least 1", ErrInvalidConfig)
	case c.EPSHistoryQuarters < 0:
		return fmt.Errorf("%w: eps_history_quarters must not be negative", ErrInvalidConfig)
	case c.FailurePolicy != FailFast && c.FailurePolicy != Continue:
		return fmt.Errorf("%w: unknown failure_policy %q", ErrInvalidConfig, c.FailurePolicy)
	case c.ReplayOrder != ReplayChronological && c.ReplayOrder != ReplaySource:
		return fmt.Errorf("%w: unknown replay_order %q", ErrInvalidConfig, c.ReplayOrder)
	case c.CacheBackend != CacheFile && c.CacheBackend != CacheBadger:
		return fmt.Errorf("%w: unknown cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	}
	if !c.OnlyLatest {
		if _, err := c.Window(time.Now()); err != nil {
			return err
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
