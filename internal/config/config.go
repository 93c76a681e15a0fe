// Package config provides explicit configuration for the analysis engine.
// Configuration is passed into constructors via dependency injection;
// there is no global mutable state.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration indicates invalid configuration. It must surface at
// startup, before any aggregation runs.
var ErrConfiguration = errors.New("configuration error")

// SourceConfig configures one external data provider.
type SourceConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BaseURL          string  `yaml:"base_url"`
	APIKey           string  `yaml:"api_key"`
	MaxCalls         int     `yaml:"max_calls"`
	WindowSeconds    int     `yaml:"window_seconds"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	Priority         int     `yaml:"priority"` // 1 = highest precedence in merge
	MaxRetries       int     `yaml:"max_retries"`
	RetryBaseDelayMs int     `yaml:"retry_base_delay_ms"`
	RetryJitter      float64 `yaml:"retry_jitter"` // [0, 1] fraction of delay
}

// Window returns the rate-limit window as a duration.
func (c SourceConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// CacheTTL returns the cache TTL as a duration.
func (c SourceConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Timeout returns the per-source fetch timeout as a duration.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the initial retry backoff delay.
func (c SourceConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// AggregatorConfig configures concurrent fan-out and merging.
type AggregatorConfig struct {
	TimeoutSeconds      int     `yaml:"timeout_seconds"`      // overall deadline
	DivergenceTolerance float64 `yaml:"divergence_tolerance"` // fraction of winning value
}

// Timeout returns the overall aggregation deadline.
func (c AggregatorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScorerConfig holds scoring thresholds.
type ScorerConfig struct {
	SafetyFloor       float64 `yaml:"safety_floor"`        // at or below forces AVOID
	SafetyComfort     float64 `yaml:"safety_comfort"`      // must exceed for HOT
	HypeHotThreshold  float64 `yaml:"hype_hot_threshold"`  // must exceed for HOT
	LiquidityFloorUSD float64 `yaml:"liquidity_floor_usd"` // below earns no liquidity credit
	MaxAcceptableTax  float64 `yaml:"max_acceptable_tax"`  // fraction, e.g. 0.10
}

// AlertConfig configures the alert formatter.
type AlertConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
}

// FeedConfig configures the detection-event subscriber.
type FeedConfig struct {
	URL                   string `yaml:"url"` // websocket endpoint
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
	MaxReconnectSeconds   int    `yaml:"max_reconnect_seconds"`
}

// DeliveryConfig configures the delivery collaborator. Its quota and
// retries are independent of source-fetch rate limits.
type DeliveryConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	MaxCalls       int    `yaml:"max_calls"`
	WindowSeconds  int    `yaml:"window_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig selects persistence backends. Empty DSN means in-memory.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root configuration.
type Config struct {
	Sources    map[string]SourceConfig `yaml:"sources"`
	Aggregator AggregatorConfig        `yaml:"aggregator"`
	Scorer     ScorerConfig            `yaml:"scorer"`
	Alert      AlertConfig             `yaml:"alert"`
	Feed       FeedConfig              `yaml:"feed"`
	Delivery   DeliveryConfig          `yaml:"delivery"`
	Storage    StorageConfig           `yaml:"storage"`
	Metrics    MetricsConfig           `yaml:"metrics"`
}

// Default returns a configuration with all five sources enabled and
// conservative thresholds.
func Default() *Config {
	return &Config{
		Sources: map[string]SourceConfig{
			"birdeye":     defaultSource("https://public-api.birdeye.so", 300, 1),
			"dexscreener": defaultSource("https://api.dexscreener.com", 300, 2),
			"rugcheck":    defaultSource("https://api.rugcheck.xyz/v1", 100, 1),
			"pumpfun":     defaultSource("https://frontend-api.pump.fun", 120, 3),
			"social":      defaultSource("https://api.socialdata.dev", 60, 1),
		},
		Aggregator: AggregatorConfig{
			TimeoutSeconds:      15,
			DivergenceTolerance: 0.25,
		},
		Scorer: ScorerConfig{
			SafetyFloor:       40,
			SafetyComfort:     70,
			HypeHotThreshold:  65,
			LiquidityFloorUSD: 10_000,
			MaxAcceptableTax:  0.10,
		},
		Alert: AlertConfig{
			MaxMessageLength: 2048,
		},
		Feed: FeedConfig{
			ReconnectDelaySeconds: 1,
			MaxReconnectSeconds:   30,
		},
		Delivery: DeliveryConfig{
			MaxCalls:       20,
			WindowSeconds:  60,
			MaxRetries:     3,
			TimeoutSeconds: 10,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9102",
		},
	}
}

func defaultSource(baseURL string, maxCalls, priority int) SourceConfig {
	return SourceConfig{
		Enabled:          true,
		BaseURL:          baseURL,
		MaxCalls:         maxCalls,
		WindowSeconds:    60,
		CacheTTLSeconds:  60,
		TimeoutSeconds:   8,
		Priority:         priority,
		MaxRetries:       3,
		RetryBaseDelayMs: 250,
		RetryJitter:      0.5,
	}
}

// Load reads, env-expands, parses and validates a YAML config file.
// Defaults apply for sections the file omits.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants. Any violation is a ConfigurationError.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrConfiguration)
	}
	for name, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		if src.BaseURL == "" {
			return fmt.Errorf("%w: source %s: base_url is required", ErrConfiguration, name)
		}
		if src.MaxCalls <= 0 {
			return fmt.Errorf("%w: source %s: max_calls must be positive", ErrConfiguration, name)
		}
		if src.WindowSeconds <= 0 {
			return fmt.Errorf("%w: source %s: window_seconds must be positive", ErrConfiguration, name)
		}
		if src.TimeoutSeconds <= 0 {
			return fmt.Errorf("%w: source %s: timeout_seconds must be positive", ErrConfiguration, name)
		}
		if src.Priority <= 0 {
			return fmt.Errorf("%w: source %s: priority must be positive", ErrConfiguration, name)
		}
		if src.MaxRetries < 0 {
			return fmt.Errorf("%w: source %s: max_retries must not be negative", ErrConfiguration, name)
		}
		if src.RetryJitter < 0 || src.RetryJitter > 1 {
			return fmt.Errorf("%w: source %s: retry_jitter must be within [0, 1]", ErrConfiguration, name)
		}
	}

	if c.Aggregator.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: aggregator timeout_seconds must be positive", ErrConfiguration)
	}
	if c.Aggregator.DivergenceTolerance < 0 {
		return fmt.Errorf("%w: divergence_tolerance must not be negative", ErrConfiguration)
	}

	s := c.Scorer
	if s.SafetyFloor < 0 || s.SafetyFloor > 100 {
		return fmt.Errorf("%w: safety_floor must be within [0, 100]", ErrConfiguration)
	}
	if s.SafetyComfort < s.SafetyFloor || s.SafetyComfort > 100 {
		return fmt.Errorf("%w: safety_comfort must be within [safety_floor, 100]", ErrConfiguration)
	}
	if s.HypeHotThreshold < 0 || s.HypeHotThreshold > 100 {
		return fmt.Errorf("%w: hype_hot_threshold must be within [0, 100]", ErrConfiguration)
	}
	if s.LiquidityFloorUSD <= 0 {
		return fmt.Errorf("%w: liquidity_floor_usd must be positive", ErrConfiguration)
	}
	if s.MaxAcceptableTax <= 0 || s.MaxAcceptableTax >= 1 {
		return fmt.Errorf("%w: max_acceptable_tax must be within (0, 1)", ErrConfiguration)
	}

	if c.Alert.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: max_message_length must be positive", ErrConfiguration)
	}
	return nil
}

// EnabledSources returns the names of enabled sources.
func (c *Config) EnabledSources() []string {
	var names []string
	for name, src := range c.Sources {
		if src.Enabled {
			names = append(names, name)
		}
	}
	return names
}
