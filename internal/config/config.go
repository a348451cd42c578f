// Package config centralises configuration parsing for the sync daemon.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures runtime configuration values for the sync daemon.
type Config struct {
	HTTPAddress   string // loopback address the UI layer talks to
	LocalDBPath   string
	RemoteBaseURL string
	ProbeInterval time.Duration // connectivity probe cadence
	MaxAttempts   int           // replay attempts before an entry is quarantined
	BaseDelay     time.Duration // base delay for exponential retry backoff
	JWTSecret     string
	JWTIssuer     string
	TenantID      string
	UserID        string
	TokenTTL      time.Duration
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress:   getEnv("HTTP_ADDRESS", "127.0.0.1:7474"),
		LocalDBPath:   getEnv("LOCAL_DB_PATH", "fitsync.db"),
		RemoteBaseURL: getEnv("REMOTE_BASE_URL", "http://localhost:8080"),
		ProbeInterval: getDurationEnv("PROBE_INTERVAL", 15*time.Second),
		MaxAttempts:   getIntEnv("SYNC_MAX_ATTEMPTS", 5),
		BaseDelay:     getDurationEnv("SYNC_BASE_DELAY", time.Minute),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:     getEnv("JWT_ISSUER", "fitsync.device"),
		TenantID:      getEnv("TENANT_ID", "default"),
		UserID:        getEnv("USER_ID", ""),
		TokenTTL:      getDurationEnv("TOKEN_TTL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
