package config

import (
	"fmt"
	"os"
	"time"

	"github.com/codelens-ai/codelens/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all Codelens configuration.
type Config struct {
	Listen   string             `yaml:"listen"`
	DBPath   string             `yaml:"db_path"`
	Upstream UpstreamConfig     `yaml:"upstream"`
	Cache    CacheConfig        `yaml:"cache"`
	Quota    QuotaConfig        `yaml:"quota"`
	Session  SessionConfig      `yaml:"session"`
	Audit    models.AuditConfig `yaml:"audit"`
}

// UpstreamConfig defines the external completion service and its
// retry/timeout policy. An empty APIKey puts the service in
// fallback-only mode.
type UpstreamConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	Jitter         float64       `yaml:"jitter"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// QuotaConfig controls token quota enforcement.
type QuotaConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Policies []models.QuotaPolicy `yaml:"policies"`
}

// SessionConfig controls chat session detection.
type SessionConfig struct {
	GapTimeout time.Duration `yaml:"gap_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "codelens.db",
		Upstream: UpstreamConfig{
			URL:            "https://api.openai.com",
			Model:          "gpt-4",
			Timeout:        10 * time.Second,
			MaxRetries:     2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			BackoffFactor:  2.0,
			Jitter:         0.2,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      time.Hour,
			Capacity: 500,
		},
		Quota: QuotaConfig{
			Enabled: false,
		},
		Session: SessionConfig{
			GapTimeout: 30 * time.Minute,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "codelens_audit.db",
			RetentionDays: 30,
			MaxBodySize:   8192,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
