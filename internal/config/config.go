// Package config loads service configuration: code defaults, then an
// optional YAML file, then environment variables (environment wins).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/bholliman55/securewatch-n8n/internal/alert"
)

// ReplayConfig holds replay entrypoint settings. Staging is the default
// target; local exists so an operator can redirect a replay away from a
// shared environment.
type ReplayConfig struct {
	StagingURL   string            `yaml:"staging_url" env:"STAGING_ENTRYPOINT_URL"`
	LocalURL     string            `yaml:"local_url"   env:"LOCAL_ENTRYPOINT_URL"`
	APIKey       string            `yaml:"api_key"     env:"WEBHOOK_API_KEY"`
	DefaultPaths map[string]string `yaml:"default_paths"`
}

// EntrypointFor returns the base URL for the named environment.
func (r ReplayConfig) EntrypointFor(envName string) (string, error) {
	switch envName {
	case "", "staging":
		if r.StagingURL == "" {
			return "", fmt.Errorf("staging entrypoint URL is not configured (STAGING_ENTRYPOINT_URL)")
		}
		return r.StagingURL, nil
	case "local":
		if r.LocalURL == "" {
			return "", fmt.Errorf("local entrypoint URL is not configured (LOCAL_ENTRYPOINT_URL)")
		}
		return r.LocalURL, nil
	default:
		return "", fmt.Errorf("unknown replay environment %q (want staging or local)", envName)
	}
}

// Config is the full service configuration.
type Config struct {
	Addr        string `yaml:"addr"         env:"SW_ADDR"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path"  env:"SW_SQLITE_PATH"`

	// AuthSecret signs and verifies capability tokens. ServiceAPIKey is the
	// static ingest credential for webhook-style producers.
	AuthSecret    string `yaml:"auth_secret"     env:"SW_AUTH_SECRET"`
	ServiceAPIKey string `yaml:"service_api_key" env:"SW_SERVICE_API_KEY"`

	AllowOrigin string `yaml:"allow_origin" env:"SW_ALLOW_ORIGIN"`

	SweepInterval time.Duration `yaml:"sweep_interval" env:"SW_SWEEP_INTERVAL"`
	ErrorWindow   time.Duration `yaml:"error_window"   env:"SW_ERROR_WINDOW"`

	// IngestURL is the live ingestion endpoint used by the contract
	// verifier's health check when verifying against a remote deployment.
	IngestURL string `yaml:"ingest_url" env:"SW_LOG_URL"`

	Alerts []alert.ChannelConfig `yaml:"alerts"`
	Replay ReplayConfig          `yaml:"replay"`
}

func defaults() *Config {
	return &Config{
		Addr:          ":8787",
		SQLitePath:    "securewatch.db",
		AllowOrigin:   "*",
		SweepInterval: 15 * time.Minute,
		ErrorWindow:   15 * time.Minute,
		Replay: ReplayConfig{
			DefaultPaths: map[string]string{
				"agent-1":      "/security-scanner-start",
				"bolt:agent-1": "/security-scanner-start",
				"agent-2":      "/vulnerability-assessment-start",
				"agent-3":      "/compliance-start",
			},
		},
	}
}

// Load builds the configuration. path may be empty (defaults + env only).
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// LoadChannels re-reads only the alert channel list from a config file,
// used by hot reload so a channel change needs no restart.
func LoadChannels(path string) ([]alert.ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var partial struct {
		Alerts []alert.ChannelConfig `yaml:"alerts"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return partial.Alerts, nil
}
