// Package config loads and validates the interviewer configuration from YAML
// and manages API key secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values applied when the YAML omits them.
const (
	DefaultConfigFile = "interviewer.yaml"

	defaultModelSpec   = "anthropic:claude-sonnet-4-20250514"
	defaultDBPath      = "interviewer.db"
	defaultMaxTokens   = 2048
	defaultTemperature = 0.2

	defaultRetryMaxAttempts   = 3
	defaultRetryInitialDelay  = 100 * time.Millisecond
	defaultRetryMaxDelay      = 10 * time.Second
	defaultRetryBackoffFactor = 2.0

	defaultCircuitFailureThreshold = 5
	defaultCircuitSuccessThreshold = 3
	defaultCircuitTimeout          = 30 * time.Second

	defaultRequestTimeout  = 60 * time.Second
	defaultTokensPerMinute = 100000
	defaultBurst           = 50000
	defaultMaxConcurrency  = 4

	defaultDailyQuestionLimit = 200
)

// ProviderConfig selects the model and completion parameters.
type ProviderConfig struct {
	ModelSpec   string  `yaml:"model"` // "vendor:model"
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// RetryConfig mirrors the retry middleware settings.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	Jitter        bool          `yaml:"jitter"`
}

// CircuitConfig mirrors the circuit breaker settings.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RateLimitConfig mirrors the token bucket settings for one vendor.
type RateLimitConfig struct {
	TokensPerMinute int `yaml:"tokens_per_minute"`
	Burst           int `yaml:"burst"`
	MaxConcurrency  int `yaml:"max_concurrency"`
}

// ResilienceConfig bundles all middleware settings.
type ResilienceConfig struct {
	Retry     RetryConfig                `yaml:"retry"`
	Circuit   CircuitConfig              `yaml:"circuit_breaker"`
	RateLimit map[string]RateLimitConfig `yaml:"rate_limit"` // keyed by vendor
	Timeout   time.Duration              `yaml:"timeout"`
}

// StorageConfig selects the sqlite database location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// QuotaConfig bounds per-user daily question generation.
type QuotaConfig struct {
	DailyQuestionLimit int `yaml:"daily_question_limit"`
}

// MetricsConfig points the spend query service at a Prometheus server.
// Empty URL disables spend queries.
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url"`
}

// Config is the root configuration. Access is by value copy; callers never
// share a mutable instance.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Storage    StorageConfig    `yaml:"storage"`
	Quota      QuotaConfig      `yaml:"quota"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults, and validates a YAML config file. A missing file is
// not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

//nolint:cyclop // field-by-field defaulting is flat and readable
func (c *Config) applyDefaults() {
	if c.Provider.ModelSpec == "" {
		c.Provider.ModelSpec = defaultModelSpec
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = defaultMaxTokens
	}
	if c.Provider.Temperature == 0 {
		c.Provider.Temperature = defaultTemperature
	}
	if c.Resilience.Retry.MaxAttempts == 0 {
		c.Resilience.Retry = RetryConfig{
			MaxAttempts:   defaultRetryMaxAttempts,
			InitialDelay:  defaultRetryInitialDelay,
			MaxDelay:      defaultRetryMaxDelay,
			BackoffFactor: defaultRetryBackoffFactor,
			Jitter:        true,
		}
	}
	if c.Resilience.Circuit.FailureThreshold == 0 {
		c.Resilience.Circuit = CircuitConfig{
			FailureThreshold: defaultCircuitFailureThreshold,
			SuccessThreshold: defaultCircuitSuccessThreshold,
			Timeout:          defaultCircuitTimeout,
		}
	}
	if c.Resilience.Timeout == 0 {
		c.Resilience.Timeout = defaultRequestTimeout
	}
	if c.Resilience.RateLimit == nil {
		c.Resilience.RateLimit = map[string]RateLimitConfig{}
	}
	for _, vendor := range []string{"anthropic", "openai", "google"} {
		if _, ok := c.Resilience.RateLimit[vendor]; !ok {
			c.Resilience.RateLimit[vendor] = RateLimitConfig{
				TokensPerMinute: defaultTokensPerMinute,
				Burst:           defaultBurst,
				MaxConcurrency:  defaultMaxConcurrency,
			}
		}
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = defaultDBPath
	}
	if c.Quota.DailyQuestionLimit == 0 {
		c.Quota.DailyQuestionLimit = defaultDailyQuestionLimit
	}
}

// Validate checks invariants the defaulting step cannot guarantee.
func (c *Config) Validate() error {
	if c.Provider.MaxTokens < 1 {
		return fmt.Errorf("provider.max_tokens must be positive, got %d", c.Provider.MaxTokens)
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be in [0, 2], got %g", c.Provider.Temperature)
	}
	if c.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("resilience.retry.max_attempts must be at least 1, got %d", c.Resilience.Retry.MaxAttempts)
	}
	if c.Resilience.Retry.BackoffFactor < 1 {
		return fmt.Errorf("resilience.retry.backoff_factor must be at least 1, got %g", c.Resilience.Retry.BackoffFactor)
	}
	if c.Resilience.Timeout <= 0 {
		return fmt.Errorf("resilience.timeout must be positive, got %v", c.Resilience.Timeout)
	}
	for vendor, rl := range c.Resilience.RateLimit {
		if rl.TokensPerMinute < 1 {
			return fmt.Errorf("resilience.rate_limit.%s.tokens_per_minute must be positive, got %d", vendor, rl.TokensPerMinute)
		}
	}
	if c.Quota.DailyQuestionLimit < 1 {
		return fmt.Errorf("quota.daily_question_limit must be positive, got %d", c.Quota.DailyQuestionLimit)
	}
	return nil
}
