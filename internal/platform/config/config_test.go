package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  trusted_proxies:
    - 10.0.0.0/8
    - 192.0.2.10
webhooks:
  max_attempts: 3
  base_delay: 2s
jwt:
  secret: test-secret
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "192.0.2.10" {
		t.Errorf("Server.TrustedProxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Webhooks.MaxAttempts != 3 {
		t.Errorf("Webhooks.MaxAttempts = %d, want 3", cfg.Webhooks.MaxAttempts)
	}
	if cfg.Webhooks.BaseDelay != 2*time.Second {
		t.Errorf("Webhooks.BaseDelay = %v, want 2s", cfg.Webhooks.BaseDelay)
	}
	if cfg.JWT.Secret != "test-secret" {
		t.Errorf("JWT.Secret = %q", cfg.JWT.Secret)
	}

	// Defaults fill whatever the file leaves out
	if cfg.Security.BcryptCost != 10 {
		t.Errorf("Security.BcryptCost = %d, want 10", cfg.Security.BcryptCost)
	}
	if cfg.Webhooks.TimeoutStep != 5*time.Second {
		t.Errorf("Webhooks.TimeoutStep = %v, want 5s", cfg.Webhooks.TimeoutStep)
	}
	if cfg.Webhooks.Workers != 8 || cfg.Webhooks.QueueSize != 1024 {
		t.Errorf("Webhooks workers/queue = %d/%d, want 8/1024", cfg.Webhooks.Workers, cfg.Webhooks.QueueSize)
	}
	if cfg.Sessions.IdleTimeout != 30*time.Minute {
		t.Errorf("Sessions.IdleTimeout = %v, want 30m", cfg.Sessions.IdleTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
