// Package config loads recall configuration from YAML files with
// environment overrides. The cache and formatter layers read a small,
// fixed surface: TTLs, refresh thresholds, work-log bounds, and the
// context tier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/recall/pkg/paths"
)

// Default configuration values exported for documentation and validation
const (
	DefaultContextTTLSeconds  = 300
	DefaultRefreshThreshold   = 50
	DefaultWorkLogMaxEntries  = 20
	DefaultTier               = "extended"
	DefaultServiceTimeoutSecs = 30
	DefaultServiceBaseURL     = "https://demo.honcho.dev"
)

const (
	envTTL       = "RECALL_CONTEXT_TTL_SECONDS"
	envThreshold = "RECALL_REFRESH_THRESHOLD"
	envTier      = "RECALL_TIER"
	envAPIKey    = "HONCHO_API_KEY"
	envBaseURL   = "HONCHO_BASE_URL"
)

// Config represents the complete recall configuration
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	WorkLog WorkLogConfig `yaml:"work_log"`
	Context ContextConfig `yaml:"context"`
	Service ServiceConfig `yaml:"service"`
}

// CacheConfig controls staleness detection for cached remote context
type CacheConfig struct {
	// ContextTTLSeconds bounds staleness by wall-clock age.
	ContextTTLSeconds int `yaml:"context_ttl_seconds"`
	// RefreshThreshold bounds staleness by conversation volume: a deep
	// refresh is due once this many messages accumulate since the last one.
	RefreshThreshold int `yaml:"refresh_threshold"`
}

// WorkLogConfig bounds the local work log
type WorkLogConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ContextConfig selects how retrieved memory is rendered
type ContextConfig struct {
	// Tier is one of essential, extended, deep.
	Tier string `yaml:"tier"`
	// Compressed selects the dense bracketed format over markdown.
	Compressed bool `yaml:"compressed"`
	// IncludeDialectic allows dialectic text at the deep tier.
	IncludeDialectic bool `yaml:"include_dialectic"`
	// MaxTokens optionally overrides the tier's total token target.
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// ServiceConfig describes the remote knowledge service
type ServiceConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key,omitempty"`
	WorkspaceName  string `yaml:"workspace_name,omitempty"`
	PeerName       string `yaml:"peer_name,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DefaultConfig returns a config populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			ContextTTLSeconds: DefaultContextTTLSeconds,
			RefreshThreshold:  DefaultRefreshThreshold,
		},
		WorkLog: WorkLogConfig{
			MaxEntries: DefaultWorkLogMaxEntries,
		},
		Context: ContextConfig{
			Tier:       DefaultTier,
			Compressed: true,
		},
		Service: ServiceConfig{
			BaseURL:        DefaultServiceBaseURL,
			TimeoutSeconds: DefaultServiceTimeoutSecs,
		},
	}
}

// ContextTTL returns the context TTL as a duration
func (c *Config) ContextTTL() time.Duration {
	return time.Duration(c.Cache.ContextTTLSeconds) * time.Second
}

// ServiceTimeout returns the remote call timeout as a duration
func (c *Config) ServiceTimeout() time.Duration {
	return time.Duration(c.Service.TimeoutSeconds) * time.Second
}

// Load reads configuration with the hierarchy: defaults, then the user
// config under the data dir, then a project-level .recall/config.yaml in
// workdir, then environment overrides. Missing files are not errors.
func Load(workdir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, paths.ConfigPath()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(workdir) != "" {
		if err := mergeFile(cfg, filepath.Join(workdir, ".recall", "config.yaml")); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	cfg.validate()
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envTTL)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.ContextTTLSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(envThreshold)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RefreshThreshold = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(envTier)); v != "" {
		cfg.Context.Tier = v
	}
	if v := strings.TrimSpace(os.Getenv(envAPIKey)); v != "" {
		cfg.Service.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
		cfg.Service.BaseURL = v
	}
}

// validate clamps out-of-range values back to defaults rather than failing;
// a misconfigured hook should degrade, never crash the host.
func (c *Config) validate() {
	if c.Cache.ContextTTLSeconds <= 0 {
		c.Cache.ContextTTLSeconds = DefaultContextTTLSeconds
	}
	if c.Cache.RefreshThreshold <= 0 {
		c.Cache.RefreshThreshold = DefaultRefreshThreshold
	}
	if c.WorkLog.MaxEntries <= 0 {
		c.WorkLog.MaxEntries = DefaultWorkLogMaxEntries
	}
	switch c.Context.Tier {
	case "essential", "extended", "deep":
	default:
		c.Context.Tier = DefaultTier
	}
	if c.Service.TimeoutSeconds <= 0 {
		c.Service.TimeoutSeconds = DefaultServiceTimeoutSecs
	}
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		c.Service.BaseURL = DefaultServiceBaseURL
	}
}

// Save writes the config to the user config path, creating the data dir.
func Save(cfg *Config) error {
	path := paths.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
