package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr       = ":8080"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "airwave"
	defaultAudience   = "airwave-api"

	// Insecure fallbacks, rejected when AIRWAVE_ENV=production.
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
)

// Config holds process-level settings loaded once at startup.
type Config struct {
	Addr        string
	Environment string

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Load reads configuration from AIRWAVE_* environment variables. Both signing
// secrets are required in production; elsewhere insecure defaults apply so the
// service can run locally without setup.
func Load() (Config, error) {
	cfg := Config{
		Addr:          envOr("AIRWAVE_ADDR", defaultAddr),
		Environment:   envOr("AIRWAVE_ENV", "development"),
		PostgresDSN:   os.Getenv("AIRWAVE_PG_DSN"),
		RedisAddr:     os.Getenv("AIRWAVE_REDIS_ADDR"),
		RedisPassword: os.Getenv("AIRWAVE_REDIS_PASSWORD"),
		AccessSecret:  envOr("AIRWAVE_ACCESS_SECRET", devAccessSecret),
		RefreshSecret: envOr("AIRWAVE_REFRESH_SECRET", devRefreshSecret),
		Issuer:        envOr("AIRWAVE_TOKEN_ISSUER", defaultIssuer),
		Audience:      envOr("AIRWAVE_TOKEN_AUDIENCE", defaultAudience),
	}

	var err error
	if cfg.RedisDB, err = envInt("AIRWAVE_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL, err = envDuration("AIRWAVE_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("AIRWAVE_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}

	if cfg.IsProduction() {
		if cfg.AccessSecret == devAccessSecret || cfg.RefreshSecret == devRefreshSecret {
			return Config{}, errors.New("config: AIRWAVE_ACCESS_SECRET and AIRWAVE_REFRESH_SECRET are required in production")
		}
		if cfg.AccessSecret == cfg.RefreshSecret {
			return Config{}, errors.New("config: access and refresh secrets must differ")
		}
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production hardening.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}

// envDuration parses time.ParseDuration syntax plus a day suffix ("7d"),
// since refresh lifetimes are configured in days.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("config: %s has invalid day value %q", key, raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
