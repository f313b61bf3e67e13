// Package config loads pipeline configuration from defaults, an optional
// config file, and CITEGRAPH_* environment variables, in ascending
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the acquisition pipeline.
type Config struct {
	// UserAgent identifies the client to both providers.
	UserAgent string `mapstructure:"user_agent"`

	// Mailto joins the providers' polite pools when set.
	Mailto string `mapstructure:"mailto"`

	// CallsPerSecond bounds the shared request rate across providers.
	CallsPerSecond int `mapstructure:"calls_per_second"`

	// MaxWorkers bounds concurrent record resolution.
	MaxWorkers int `mapstructure:"max_workers"`

	// MaxRetries bounds attempts per request.
	MaxRetries int `mapstructure:"max_retries"`

	CrossrefTimeout time.Duration `mapstructure:"crossref_timeout"`
	OpenAlexTimeout time.Duration `mapstructure:"openalex_timeout"`

	CrossrefBaseURL string `mapstructure:"crossref_base_url"`
	OpenAlexBaseURL string `mapstructure:"openalex_base_url"`

	// RedisAddr enables the persistent payload store when non-empty.
	RedisAddr string        `mapstructure:"redis_addr"`
	StoreTTL  time.Duration `mapstructure:"store_ttl"`

	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", "citegraph/0.1.0")
	v.SetDefault("mailto", "")
	v.SetDefault("calls_per_second", 8)
	v.SetDefault("max_workers", 5)
	v.SetDefault("max_retries", 3)
	v.SetDefault("crossref_timeout", 15*time.Second)
	v.SetDefault("openalex_timeout", 10*time.Second)
	v.SetDefault("crossref_base_url", "")
	v.SetDefault("openalex_base_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("store_ttl", 7*24*time.Hour)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

// Load reads configuration. The file path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CITEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would stall or hammer the providers.
func (c *Config) Validate() error {
	if c.CallsPerSecond <= 0 {
		return fmt.Errorf("calls_per_second must be positive, got %d", c.CallsPerSecond)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}
	if c.CrossrefTimeout <= 0 || c.OpenAlexTimeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	return nil
}
