// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Render    RenderConfig    `mapstructure:"render"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// HarvestConfig governs the download pipeline.
type HarvestConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	Concurrency     int    `mapstructure:"concurrency"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	UserAgent       string `mapstructure:"user_agent"`
	RetryMaxAttempt int    `mapstructure:"retry_max_attempts"`
	ProbeDimensions bool   `mapstructure:"probe_dimensions"`
	QueueDepth      int    `mapstructure:"queue_depth"`
}

// RenderConfig configures the optional headless rendering escalation.
type RenderConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
}

// RateLimitConfig controls the optional per-host token bucket for image fetches.
type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// ProgressConfig tunes the progress hub and its sinks.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds event batching inside the hub.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// MetricsConfig toggles the Prometheus status listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the operator log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// StorageConfig selects the image store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// Load builds a Config from disk/environment. An empty path searches the
// usual locations and tolerates a missing file; a given path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-harvester")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.output_dir", "downloaded_images")
	v.SetDefault("harvest.concurrency", 5)
	v.SetDefault("harvest.max_size_mb", 0)
	v.SetDefault("harvest.timeout_seconds", 30)
	v.SetDefault("harvest.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("harvest.retry_max_attempts", 2)
	v.SetDefault("harvest.probe_dimensions", true)
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.nav_timeout_seconds", 45)
	v.SetDefault("render.min_html_bytes", 2048)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.default_rps", 0)
	v.SetDefault("ratelimit.default_burst", 1)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.batch.max_events", 32)
	v.SetDefault("progress.batch.max_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 1000)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("storage.backend", "local")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Harvest.OutputDir) == "" {
		return fmt.Errorf("harvest.output_dir must not be empty")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.MaxSizeMB < 0 {
		return fmt.Errorf("harvest.max_size_mb must be >= 0")
	}
	if c.Harvest.TimeoutSeconds <= 0 {
		return fmt.Errorf("harvest.timeout_seconds must be > 0")
	}
	if c.Harvest.RetryMaxAttempt < 0 {
		return fmt.Errorf("harvest.retry_max_attempts must be >= 0")
	}
	if c.Harvest.QueueDepth <= 0 {
		return fmt.Errorf("harvest.queue_depth must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when render is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	default:
		return fmt.Errorf("storage.backend must be local or memory, got %q", c.Storage.Backend)
	}
	return nil
}

// RequestTimeout converts the per-request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Harvest.TimeoutSeconds) * time.Second
}

// MaxSizeBytes converts the configured cap into bytes; 0 means unlimited.
func (c Config) MaxSizeBytes() int64 {
	return int64(c.Harvest.MaxSizeMB) * 1024 * 1024
}
