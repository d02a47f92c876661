package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "securewatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Errorf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.SQLitePath != "securewatch.db" {
		t.Errorf("expected default sqlite path, got %q", cfg.SQLitePath)
	}
	if cfg.SweepInterval != 15*time.Minute || cfg.ErrorWindow != 15*time.Minute {
		t.Errorf("expected 15m sweep defaults, got %s/%s", cfg.SweepInterval, cfg.ErrorWindow)
	}
	if cfg.Replay.DefaultPaths["agent-2"] != "/vulnerability-assessment-start" {
		t.Errorf("expected per-source default paths, got %v", cfg.Replay.DefaultPaths)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: ":9999"
sweep_interval: 5m
alerts:
  - name: ops
    url: https://hooks.example.com/x
    format: slack
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected file addr, got %q", cfg.Addr)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("expected file interval, got %s", cfg.SweepInterval)
	}
	if len(cfg.Alerts) != 1 || cfg.Alerts[0].Format != "slack" {
		t.Errorf("expected alert channel parsed, got %+v", cfg.Alerts)
	}
	// Untouched keys keep their defaults.
	if cfg.ErrorWindow != 15*time.Minute {
		t.Errorf("expected default window preserved, got %s", cfg.ErrorWindow)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `addr: ":9999"`)
	t.Setenv("SW_ADDR", ":7777")
	t.Setenv("SW_AUTH_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Errorf("expected env to win, got %q", cfg.Addr)
	}
	if cfg.AuthSecret != "env-secret" {
		t.Errorf("expected env secret, got %q", cfg.AuthSecret)
	}
}

func TestReplayEntrypointSelection(t *testing.T) {
	r := ReplayConfig{StagingURL: "https://staging", LocalURL: "http://localhost:5678"}

	if url, err := r.EntrypointFor(""); err != nil || url != "https://staging" {
		t.Errorf("expected staging default, got %q %v", url, err)
	}
	if url, err := r.EntrypointFor("local"); err != nil || url != "http://localhost:5678" {
		t.Errorf("expected local url, got %q %v", url, err)
	}
	if _, err := r.EntrypointFor("production"); err == nil {
		t.Error("expected unknown environment rejected")
	}
	if _, err := (ReplayConfig{}).EntrypointFor("staging"); err == nil {
		t.Error("expected unset staging url rejected")
	}
}

func TestLoadChannels(t *testing.T) {
	path := writeConfig(t, `
addr: ":9999"
alerts:
  - name: pd
    url: https://events.pagerduty.com/v2/enqueue
    format: pagerduty
`)
	channels, err := LoadChannels(path)
	if err != nil {
		t.Fatalf("load channels failed: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "pd" {
		t.Errorf("expected one channel, got %+v", channels)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected missing file to error")
	}
}
