// Package config provides configuration management for relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/llmrelay/relay/internal/dispatch"
)

// Config represents the application configuration
type Config struct {
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Circuit   CircuitConfig   `mapstructure:"circuit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DispatchConfig configures request dispatch behavior
type DispatchConfig struct {
	Strategy       string        `mapstructure:"strategy"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CircuitConfig configures the per-provider circuit breakers
type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig configures the per-provider rate-limit backoff
type RateLimitConfig struct {
	Backoff time.Duration `mapstructure:"backoff"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ProvidersConfig locates the provider catalog
type ProvidersConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// PricingConfig locates the pricing table. Empty path uses built-in prices.
type PricingConfig struct {
	TablePath string `mapstructure:"table_path"`
}

// HistoryConfig locates the history database
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig configures logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "relay"))
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, we'll use defaults
	}

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.strategy", string(dispatch.StrategyPriority))
	v.SetDefault("dispatch.request_timeout", 60*time.Second)

	v.SetDefault("circuit.failure_threshold", dispatch.DefaultCircuitThreshold)
	v.SetDefault("circuit.timeout", dispatch.DefaultCircuitTimeout)

	v.SetDefault("rate_limit.backoff", dispatch.DefaultRateLimitBackoff)

	v.SetDefault("cache.ttl", dispatch.DefaultCacheTTL)

	v.SetDefault("providers.catalog_path", "providers.yaml")
	v.SetDefault("pricing.table_path", "")
	v.SetDefault("history.db_path", ".relay/history.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !dispatch.ValidStrategy(dispatch.RoutingStrategy(c.Dispatch.Strategy)) {
		return fmt.Errorf("dispatch.strategy must be one of: priority, round_robin, least_cost, fastest, adaptive")
	}
	if c.Dispatch.RequestTimeout <= 0 {
		return fmt.Errorf("dispatch.request_timeout must be positive")
	}

	if c.Circuit.FailureThreshold <= 0 {
		return fmt.Errorf("circuit.failure_threshold must be positive")
	}
	if c.Circuit.Timeout <= 0 {
		return fmt.Errorf("circuit.timeout must be positive")
	}

	if c.RateLimit.Backoff <= 0 {
		return fmt.Errorf("rate_limit.backoff must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.Providers.CatalogPath == "" {
		return fmt.Errorf("providers.catalog_path is required")
	}
	if c.History.DBPath == "" {
		return fmt.Errorf("history.db_path is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// Strategy returns the configured default routing strategy
func (c *Config) Strategy() dispatch.RoutingStrategy {
	return dispatch.RoutingStrategy(c.Dispatch.Strategy)
}

// GetLogLevel returns the zerolog level based on config
func (c *Config) GetLogLevel() zerolog.Level {
	switch c.Logging.Level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// IsJSONFormat returns true if logging format is JSON
func (c *Config) IsJSONFormat() bool {
	return c.Logging.Format == "json"
}
