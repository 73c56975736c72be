// Package config provides Viper-based configuration management for sentiment-fetch
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/sentiment-fetch/pkg/client"
	"github.com/Sternrassler/sentiment-fetch/pkg/fetch"
	"github.com/Sternrassler/sentiment-fetch/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SENTIMENT_SEARCH_BEARER_TOKEN.
const EnvPrefix = "SENTIMENT"

// Classifier backends.
const (
	BackendLexicon = "lexicon"
	BackendOpenAI  = "openai"
)

// Config represents the complete sentiment-fetch configuration
type Config struct {
	Search     SearchConfig     `mapstructure:"search"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Server     ServerConfig     `mapstructure:"server"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// SearchConfig contains search API settings
type SearchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	BearerToken       string        `mapstructure:"bearer_token"`
	UserAgent         string        `mapstructure:"user_agent"`
	Language          string        `mapstructure:"language"`
	ExcludeRetweets   bool          `mapstructure:"exclude_retweets"`
	MaxPageSize       int           `mapstructure:"max_page_size"`
	MinPageSize       int           `mapstructure:"min_page_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// RetryConfig contains rate-limit retry settings
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Wait        time.Duration `mapstructure:"wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	MaxPages    int           `mapstructure:"max_pages"`
}

// RedisConfig contains quota-state and page-cache settings.
// An empty Addr disables both.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ClassifierConfig selects and configures the sentiment classifier
type ClassifierConfig struct {
	Backend     string       `mapstructure:"backend"`
	Concurrency int          `mapstructure:"concurrency"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig contains remote classifier settings
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// WatchConfig contains scheduled re-run settings
type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors   bool `mapstructure:"colors"`
	Progress bool `mapstructure:"progress"`
}

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sentiment-fetch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sentiment-fetch")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	defClient := client.DefaultConfig("")
	defRetry := fetch.DefaultRetryConfig()

	// Search defaults
	v.SetDefault("search.base_url", defClient.BaseURL)
	v.SetDefault("search.bearer_token", "")
	v.SetDefault("search.user_agent", defClient.UserAgent)
	v.SetDefault("search.language", "en")
	v.SetDefault("search.exclude_retweets", true)
	v.SetDefault("search.max_page_size", defClient.MaxPageSize)
	v.SetDefault("search.min_page_size", defClient.MinPageSize)
	v.SetDefault("search.requests_per_second", defClient.RequestsPerSecond)
	v.SetDefault("search.burst", defClient.Burst)
	v.SetDefault("search.timeout", defClient.Timeout)

	// Retry defaults
	v.SetDefault("retry.max_attempts", defRetry.MaxAttempts)
	v.SetDefault("retry.wait", defRetry.Wait)
	v.SetDefault("retry.multiplier", defRetry.Multiplier)
	v.SetDefault("retry.max_wait", defRetry.MaxWait)
	v.SetDefault("retry.max_pages", fetch.DefaultMaxPages)

	// Redis defaults (disabled)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", defClient.CacheTTL)

	// Classifier defaults
	v.SetDefault("classifier.backend", BackendLexicon)
	v.SetDefault("classifier.concurrency", 4)
	v.SetDefault("classifier.openai.api_key", "")
	v.SetDefault("classifier.openai.base_url", "")
	v.SetDefault("classifier.openai.model", "gpt-4o-mini")
	v.SetDefault("classifier.openai.max_retries", 2)

	// Server / watch defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("watch.schedule", "@every 15m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Output defaults
	v.SetDefault("output.colors", true)
	v.SetDefault("output.progress", true)
}

// Validate checks the configuration for errors. The bearer token is not
// required here because offline runs never contact the search API.
func (c *Config) Validate() error {
	if c.Search.MaxPageSize < 1 || c.Search.MaxPageSize > fetch.DefaultMaxPageSize {
		return fmt.Errorf("search.max_page_size must be between 1 and %d (got %d)", fetch.DefaultMaxPageSize, c.Search.MaxPageSize)
	}
	if c.Search.MinPageSize < 1 || c.Search.MinPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.min_page_size must be between 1 and max_page_size (got %d)", c.Search.MinPageSize)
	}
	if c.Search.RequestsPerSecond <= 0 {
		return fmt.Errorf("search.requests_per_second must be > 0 (got %v)", c.Search.RequestsPerSecond)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be > 0 (got %v)", c.Search.Timeout)
	}

	if err := c.FetchRetry().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Retry.MaxPages < 1 {
		return fmt.Errorf("retry.max_pages must be >= 1 (got %d)", c.Retry.MaxPages)
	}

	switch c.Classifier.Backend {
	case BackendLexicon:
	case BackendOpenAI:
		if c.Classifier.OpenAI.APIKey == "" {
			return fmt.Errorf("classifier.openai.api_key is required for the openai backend")
		}
	default:
		return fmt.Errorf("invalid classifier backend: %s (must be lexicon or openai)", c.Classifier.Backend)
	}
	if c.Classifier.Concurrency < 1 {
		return fmt.Errorf("classifier.concurrency must be >= 1 (got %d)", c.Classifier.Concurrency)
	}

	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", c.Watch.Schedule, err)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// FetchRetry returns the rate-limit retry policy.
func (c *Config) FetchRetry() fetch.RetryConfig {
	return fetch.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		Wait:        c.Retry.Wait,
		Multiplier:  c.Retry.Multiplier,
		MaxWait:     c.Retry.MaxWait,
	}
}

// FetchConfig returns the orchestrator configuration.
func (c *Config) FetchConfig() fetch.Config {
	cfg := fetch.DefaultConfig()
	cfg.Retry = c.FetchRetry()
	cfg.MaxPages = c.Retry.MaxPages
	return cfg
}

// ClientConfig returns the search client configuration. redisClient may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	return client.Config{
		BaseURL:           c.Search.BaseURL,
		BearerToken:       c.Search.BearerToken,
		UserAgent:         c.Search.UserAgent,
		Timeout:           c.Search.Timeout,
		RequestsPerSecond: c.Search.RequestsPerSecond,
		Burst:             c.Search.Burst,
		MinPageSize:       c.Search.MinPageSize,
		MaxPageSize:       c.Search.MaxPageSize,
		Redis:             redisClient,
		CacheTTL:          c.Redis.CacheTTL,
	}
}

// RedisOptions returns connection options, or nil when Redis is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// Query builds the fetch query for text with the configured filters.
func (c *Config) Query(text string) fetch.Query {
	return fetch.Query{
		Text:            text,
		Language:        c.Search.Language,
		ExcludeRetweets: c.Search.ExcludeRetweets,
	}
}
