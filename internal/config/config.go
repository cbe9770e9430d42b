// Package config loads the service configuration from environment
// variables with sane defaults, optionally overlaid by a YAML file
// (gopkg.in/yaml.v3), in this lineage's LoadConfig/AdjustConfig style: load
// raw values, then run one normalization pass that derives fields no env
// var sets directly (e.g. which cache backends are in play).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole-service configuration.
type Config struct {
	Server   ServerCfg   `yaml:"server"`
	Upstream UpstreamCfg `yaml:"upstream"`
	Cache    CacheCfg    `yaml:"cache"`
	LogLevel string      `yaml:"log_level"`
}

// ServerCfg configures the HTTP transport.
type ServerCfg struct {
	ListenPort    int    `yaml:"listen_port"`
	AllowedOrigin string `yaml:"allowed_origin"`
	Environment   string `yaml:"environment"`
}

// UpstreamCfg configures the rate-limited GraphQL client.
type UpstreamCfg struct {
	Token          string        `yaml:"-"` // never serialized from/into YAML; env only
	Endpoint       string        `yaml:"endpoint"`
	MinInterval    time.Duration `yaml:"min_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	PageSize       int           `yaml:"page_size"`
	PageLimit      int           `yaml:"page_limit"`
}

// CacheCfg configures the cache stack (C1-C4).
type CacheCfg struct {
	RemoteURL        string        `yaml:"-"` // never serialized from/into YAML; env only
	PromotionEnabled bool          `yaml:"promotion_enabled"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`

	// UseRemote is derived during AdjustConfig from RemoteURL's presence,
	// never read directly from YAML or env.
	UseRemote bool `yaml:"-"`
}

// Load builds a Config from defaults, an optional YAML overlay (path from
// CONFIG_FILE), then environment variables (which always win), and runs
// AdjustConfig to derive computed fields.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("load config overlay %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Upstream.Token == "" {
		return nil, fmt.Errorf("fatal-configuration: UPSTREAM_TOKEN is required")
	}

	cfg.AdjustConfig()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerCfg{
			ListenPort:    3001,
			AllowedOrigin: "http://localhost:3000",
			Environment:   "development",
		},
		Upstream: UpstreamCfg{
			Endpoint:       "https://api.start.gg/gql/alpha",
			MinInterval:    800 * time.Millisecond,
			MaxRetries:     3,
			RetryBaseDelay: 2 * time.Second,
			PageSize:       30,
			PageLimit:      10,
		},
		Cache: CacheCfg{
			SweepInterval: 300 * time.Second,
		},
	}
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read yaml file: %w", err)
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UPSTREAM_TOKEN"); v != "" {
		cfg.Upstream.Token = v
	}
	if v := os.Getenv("UPSTREAM_ENDPOINT"); v != "" {
		cfg.Upstream.Endpoint = v
	}
	if v := os.Getenv("REMOTE_CACHE_URL"); v != "" {
		cfg.Cache.RemoteURL = v
	}
	if v := os.Getenv("CACHE_PROMOTION_ENABLED"); v != "" {
		cfg.Cache.PromotionEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LISTEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.ListenPort = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		cfg.Server.AllowedOrigin = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("UPSTREAM_MIN_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.MinInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("UPSTREAM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.MaxRetries = n
		}
	}
	if v := os.Getenv("UPSTREAM_RETRY_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.RetryBaseDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.PageSize = n
		}
	}
	if v := os.Getenv("PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.PageLimit = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// AdjustConfig derives computed fields after raw values are loaded,
// mirroring this lineage's post-load normalization convention.
func (c *Config) AdjustConfig() {
	c.Cache.UseRemote = c.Cache.RemoteURL != ""
}
