package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task notification service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string
	RedisURL    string
	SeedFile    string

	DirectoryCacheTTL time.Duration

	WSSendBuffer   int
	WSWriteTimeout time.Duration
	WSReadTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "taskhub"),
		AllowAnyOrigin:    false,
		DatabaseURL:       envTrimmed("DATABASE_URL"),
		RedisURL:          envTrimmed("REDIS_URL"),
		SeedFile:          envTrimmed("APP_SEED_FILE"),
		ShutdownTimeout:   15 * time.Second,
		DirectoryCacheTTL: 30 * time.Second,
		WSSendBuffer:      64,
		WSWriteTimeout:    10 * time.Second,
		WSReadTimeout:     120 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DirectoryCacheTTL, err = durationFromEnv("APP_DIRECTORY_CACHE_TTL", cfg.DirectoryCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.WSWriteTimeout, err = durationFromEnv("APP_WS_WRITE_TIMEOUT", cfg.WSWriteTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WSReadTimeout, err = durationFromEnv("APP_WS_READ_TIMEOUT", cfg.WSReadTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WSSendBuffer, err = intFromEnv("APP_WS_SEND_BUFFER", cfg.WSSendBuffer)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.DirectoryCacheTTL < time.Second {
		return Config{}, fmt.Errorf("APP_DIRECTORY_CACHE_TTL must be at least 1s")
	}
	if cfg.WSSendBuffer < 1 {
		return Config{}, fmt.Errorf("APP_WS_SEND_BUFFER must be positive")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_WS_WRITE_TIMEOUT must be positive")
	}
	if cfg.WSReadTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_WS_READ_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
