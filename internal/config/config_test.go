package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MetricsNamespace != "taskhub" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "taskhub")
	}
	if cfg.DirectoryCacheTTL != 30*time.Second {
		t.Fatalf("DirectoryCacheTTL = %v, want 30s", cfg.DirectoryCacheTTL)
	}
	if cfg.WSSendBuffer != 64 {
		t.Fatalf("WSSendBuffer = %d, want 64", cfg.WSSendBuffer)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = true, want false default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_DIRECTORY_CACHE_TTL", "45s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.DirectoryCacheTTL != 45*time.Second {
		t.Fatalf("DirectoryCacheTTL = %v, want 45s", cfg.DirectoryCacheTTL)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsTinyCacheTTL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_DIRECTORY_CACHE_TTL", "100ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want TTL validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_DIRECTORY_CACHE_TTL",
		"APP_WS_SEND_BUFFER",
		"APP_WS_WRITE_TIMEOUT",
		"APP_WS_READ_TIMEOUT",
		"DATABASE_URL",
		"REDIS_URL",
		"APP_SEED_FILE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
