package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port == "" {
		t.Error("expected a default server port")
	}
	if cfg.Generator.MaxTotalThreads < 1 {
		t.Errorf("MaxTotalThreads = %d, want >= 1", cfg.Generator.MaxTotalThreads)
	}
	if cfg.Generator.DefaultCPULimitPercent < 1 || cfg.Generator.DefaultCPULimitPercent > 100 {
		t.Errorf("DefaultCPULimitPercent = %d, want in [1,100]", cfg.Generator.DefaultCPULimitPercent)
	}
	if cfg.Generator.LeaseTTL <= cfg.Generator.ProgressFlushInterval {
		t.Error("lease TTL must exceed the progress flush interval")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("GENERATOR_MAX_TOTAL_THREADS", "12")
	t.Setenv("GENERATOR_PROGRESS_FLUSH_INTERVAL", "500ms")
	t.Setenv("GENERATOR_LEASE_TTL", "10s")
	t.Setenv("CLICKHOUSE_ENABLED", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != "9191" {
		t.Errorf("Port = %s, want 9191", cfg.Server.Port)
	}
	if cfg.Generator.MaxTotalThreads != 12 {
		t.Errorf("MaxTotalThreads = %d, want 12", cfg.Generator.MaxTotalThreads)
	}
	if cfg.Generator.ProgressFlushInterval != 500*time.Millisecond {
		t.Errorf("ProgressFlushInterval = %s, want 500ms", cfg.Generator.ProgressFlushInterval)
	}
	if !cfg.Database.ClickHouse.Enabled {
		t.Error("expected ClickHouse to be enabled")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero threads", "GENERATOR_MAX_TOTAL_THREADS", "0"},
		{"cpu limit above 100", "GENERATOR_DEFAULT_CPU_LIMIT", "150"},
		{"cpu limit zero", "GENERATOR_DEFAULT_CPU_LIMIT", "0"},
		{"lease shorter than flush", "GENERATOR_LEASE_TTL", "1s"},
		{"zero batch", "GENERATOR_BATCH_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected LoadConfig to reject %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "not-a-number")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_BOOL", "true")

	if got := getEnv("TEST_STR", "x"); got != "hello" {
		t.Errorf("getEnv = %s", got)
	}
	if got := getEnv("TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv missing = %s", got)
	}
	if got := getEnvAsInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvAsInt = %d", got)
	}
	if got := getEnvAsInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt bad = %d, want default 7", got)
	}
	if got := getEnvAsDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvAsDuration = %s", got)
	}
	if got := getEnvAsBool("TEST_BOOL", false); !got {
		t.Error("getEnvAsBool = false, want true")
	}
}
