// Package config handles environment variable loading for the store URL,
// scheduler tuning, pool composition, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"testdeck/internal/pool"
	"testdeck/internal/store"
)

// Config holds all configuration values for the orchestrator.
type Config struct {
	// Backing store endpoint: redis://, postgres://, or memory://
	StoreURL string

	// HTTP server port
	HTTPPort int

	// Scheduler period
	TickInterval time.Duration

	// Default retry budget on new jobs
	MaxRetries int

	// Defaults applied to submissions that omit them
	DefaultPriority store.Priority
	DefaultTarget   store.Target

	// Initial agent/device composition
	PoolSpec string

	// Executor selection: "simulated" or "docker"
	Executor string

	// Runner image for the docker executor
	ExecutorImage string

	// Per-test timeout for the docker executor
	ExecutorTimeout time.Duration

	// OTLP collector endpoint for traces
	OTELEndpoint string

	// Submit rate limit per client host; 0 disables limiting
	RateLimit      int
	RateLimitBurst int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		StoreURL:        "redis://localhost:6379",
		HTTPPort:        8080,
		TickInterval:    5 * time.Second,
		MaxRetries:      3,
		DefaultPriority: store.PriorityMedium,
		DefaultTarget:   store.TargetEmulator,
		PoolSpec:        pool.DefaultSpec,
		Executor:        "simulated",
		ExecutorImage:   "testdeck/runner:latest",
		ExecutorTimeout: 30 * time.Minute,
		OTELEndpoint:    "localhost:4317",
	}

	if v := os.Getenv("STORE_URL"); v != "" {
		cfg.StoreURL = v
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.HTTPPort = p
	}

	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		cfg.TickInterval = d
	}

	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_RETRIES: %w", err)
		}
		if n < 1 {
			return nil, fmt.Errorf("MAX_RETRIES must be at least 1")
		}
		cfg.MaxRetries = n
	}

	if v := os.Getenv("DEFAULT_PRIORITY"); v != "" {
		p := store.Priority(v)
		if !p.Valid() {
			return nil, fmt.Errorf("invalid DEFAULT_PRIORITY: %q", v)
		}
		cfg.DefaultPriority = p
	}

	if v := os.Getenv("DEFAULT_TARGET"); v != "" {
		t := store.Target(v)
		if !t.Valid() {
			return nil, fmt.Errorf("invalid DEFAULT_TARGET: %q", v)
		}
		cfg.DefaultTarget = t
	}

	if v := os.Getenv("POOL_SPEC"); v != "" {
		cfg.PoolSpec = v
	}

	if v := os.Getenv("EXECUTOR"); v != "" {
		if v != "simulated" && v != "docker" {
			return nil, fmt.Errorf("invalid EXECUTOR: %q", v)
		}
		cfg.Executor = v
	}

	if v := os.Getenv("EXECUTOR_IMAGE"); v != "" {
		cfg.ExecutorImage = v
	}

	if v := os.Getenv("EXECUTOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EXECUTOR_TIMEOUT: %w", err)
		}
		cfg.ExecutorTimeout = d
	}

	if v := os.Getenv("OTEL_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = n
	}

	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	return cfg, nil
}
