package config

import (
	"testing"
	"time"

	"testdeck/internal/pool"
	"testdeck/internal/store"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreURL != "redis://localhost:6379" {
		t.Errorf("expected default StoreURL, got %s", cfg.StoreURL)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort 8080, got %d", cfg.HTTPPort)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("expected TickInterval 5s, got %v", cfg.TickInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.DefaultPriority != store.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", cfg.DefaultPriority)
	}
	if cfg.DefaultTarget != store.TargetEmulator {
		t.Errorf("expected default target emulator, got %s", cfg.DefaultTarget)
	}
	if cfg.PoolSpec != pool.DefaultSpec {
		t.Errorf("expected default pool spec, got %s", cfg.PoolSpec)
	}
	if cfg.Executor != "simulated" {
		t.Errorf("expected simulated executor, got %s", cfg.Executor)
	}
	if cfg.OTELEndpoint != "localhost:4317" {
		t.Errorf("expected OTELEndpoint localhost:4317, got %s", cfg.OTELEndpoint)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("expected rate limiting disabled, got %d", cfg.RateLimit)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("STORE_URL", "postgres://localhost/testdeck")
	t.Setenv("PORT", "9999")
	t.Setenv("TICK_INTERVAL", "1s")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("DEFAULT_PRIORITY", "high")
	t.Setenv("DEFAULT_TARGET", "browserstack")
	t.Setenv("POOL_SPEC", "agent-1:emulator-1")
	t.Setenv("EXECUTOR", "docker")
	t.Setenv("EXECUTOR_IMAGE", "acme/runner:2")
	t.Setenv("RATE_LIMIT", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreURL != "postgres://localhost/testdeck" {
		t.Errorf("expected StoreURL from env, got %s", cfg.StoreURL)
	}
	if cfg.HTTPPort != 9999 {
		t.Errorf("expected HTTPPort 9999, got %d", cfg.HTTPPort)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("expected TickInterval 1s, got %v", cfg.TickInterval)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries 5, got %d", cfg.MaxRetries)
	}
	if cfg.DefaultPriority != store.PriorityHigh {
		t.Errorf("expected priority high, got %s", cfg.DefaultPriority)
	}
	if cfg.DefaultTarget != store.TargetBrowserstack {
		t.Errorf("expected target browserstack, got %s", cfg.DefaultTarget)
	}
	if cfg.PoolSpec != "agent-1:emulator-1" {
		t.Errorf("expected PoolSpec from env, got %s", cfg.PoolSpec)
	}
	if cfg.Executor != "docker" || cfg.ExecutorImage != "acme/runner:2" {
		t.Errorf("expected docker executor config, got %s/%s", cfg.Executor, cfg.ExecutorImage)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("expected RateLimit 10, got %d", cfg.RateLimit)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-port"},
		{"bad tick interval", "TICK_INTERVAL", "fast"},
		{"bad max retries", "MAX_RETRIES", "many"},
		{"zero max retries", "MAX_RETRIES", "0"},
		{"bad priority", "DEFAULT_PRIORITY", "urgent"},
		{"bad target", "DEFAULT_TARGET", "mainframe"},
		{"bad executor", "EXECUTOR", "bare-metal"},
		{"bad rate limit", "RATE_LIMIT", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
