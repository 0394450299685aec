package config

import (
	"fmt"
	"os"
	"time"

	"pigeon-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills optional sections so Validate only has to reject
// genuinely broken input.
func (c *Config) applyDefaults() {
	if c.Cache.CurrentTTLSeconds <= 0 {
		c.Cache.CurrentTTLSeconds = 30
	}
	if c.Cache.HistoricalTTLSeconds <= 0 {
		c.Cache.HistoricalTTLSeconds = 300
	}
	if c.Correlation.DefaultBucket == "" {
		c.Correlation.DefaultBucket = "hour"
	}
	if len(c.Correlation.Levels) == 0 {
		c.Correlation.Levels = models.DefaultSignificanceLevels()
	}
	if c.Downsample.Threshold <= 0 {
		c.Downsample.Threshold = 500
	}
	if c.Downsample.TargetPoints <= 0 {
		c.Downsample.TargetPoints = 200
	}
	if c.Downsample.Strategy == "" {
		c.Downsample.Strategy = "adaptive"
	}
	if c.Admission.MaxConcurrent <= 0 {
		c.Admission.MaxConcurrent = 20
	}
	if c.Network.RequestsPerSecond <= 0 {
		c.Network.RequestsPerSecond = 5
	}
	if c.Network.Burst <= 0 {
		c.Network.Burst = 5
	}
	if c.Upstreams.RefreshSeconds <= 0 {
		c.Upstreams.RefreshSeconds = 60
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Upstreams configuration
	if c.Upstreams.CoinGeckoURL == "" || c.Upstreams.CoinMarketCapURL == "" {
		return fmt.Errorf("both price upstream URLs must be configured")
	}
	if c.Upstreams.SightingsURL == "" {
		return fmt.Errorf("sightings upstream URL cannot be empty")
	}
	if len(c.Upstreams.Coins) == 0 {
		return fmt.Errorf("at least one coin must be configured")
	}
	for i, coin := range c.Upstreams.Coins {
		if coin.ID == "" || coin.Symbol == "" {
			return fmt.Errorf("coin %d must have an id and a symbol", i)
		}
	}
	if len(c.Upstreams.Areas) == 0 {
		return fmt.Errorf("at least one urban area must be configured")
	}

	// Validate Rate limit windows
	for i, rl := range c.RateLimits {
		if rl.SourceID == "" {
			return fmt.Errorf("rate limit %d must name a source", i)
		}
		if rl.WindowSeconds <= 0 || rl.Limit <= 0 {
			return fmt.Errorf("rate limit for '%s' must have a positive window and limit", rl.SourceID)
		}
	}

	// Validate Correlation policy
	switch c.Correlation.DefaultBucket {
	case "minute", "hour", "day":
	default:
		return fmt.Errorf("invalid default bucket '%s' (must be minute, hour or day)", c.Correlation.DefaultBucket)
	}
	for i, lvl := range c.Correlation.Levels {
		if lvl.MaxPValue <= 0 || lvl.MaxPValue > 1 {
			return fmt.Errorf("significance level %d has invalid max p-value %f", i, lvl.MaxPValue)
		}
	}

	// Validate Downsample policy
	switch c.Downsample.Strategy {
	case "stride", "average", "adaptive":
	default:
		return fmt.Errorf("invalid downsample strategy '%s'", c.Downsample.Strategy)
	}

	return nil
}

// -----------------------------------------------------------------------------

// BucketDuration resolves a bucket name to its width. Empty input falls
// back to the configured default.
func (c *Config) BucketDuration(name string) (time.Duration, error) {
	if name == "" {
		name = c.Correlation.DefaultBucket
	}
	switch name {
	case "minute":
		return time.Minute, nil
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown bucket size '%s'", name)
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
