package config

import (
	"os"
	"strconv"
	"time"
)

// Application settings
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Links   LinksConfig
	Geo     GeoConfig
	Ledger  LedgerConfig
	Sweep   SweepConfig
	Auth    AuthConfig
}

// Server settings
type ServerConfig struct {
	Port string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// Tracking link defaults
type LinksConfig struct {
	DefaultTTLHours int
	PublicBaseURL   string
}

// Geolocation lookup settings
type GeoConfig struct {
	DatabasePath  string
	LookupTimeout time.Duration
}

// Revenue ledger collaborator settings
type LedgerConfig struct {
	URL                string
	Secret             string
	RequestTimeout     time.Duration
	RateLimitPerSecond int
}

// Expiration sweep settings
type SweepConfig struct {
	Schedule string
	Timeout  time.Duration
}

// Authorization settings
type AuthConfig struct {
	APIKey string
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Links: LinksConfig{
			DefaultTTLHours: getIntEnv("LINK_DEFAULT_TTL_HOURS", 24),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Geo: GeoConfig{
			DatabasePath:  getEnv("GEOIP_DB_PATH", ""),
			LookupTimeout: getDurationEnv("GEOIP_LOOKUP_TIMEOUT", "500ms"),
		},
		Ledger: LedgerConfig{
			URL:                getEnv("LEDGER_URL", ""),
			Secret:             getEnv("LEDGER_SECRET", ""),
			RequestTimeout:     getDurationEnv("LEDGER_REQUEST_TIMEOUT", "5s"),
			RateLimitPerSecond: getIntEnv("LEDGER_RATE_LIMIT_PER_SECOND", 100),
		},
		Sweep: SweepConfig{
			Schedule: getEnv("SWEEP_SCHEDULE", "* * * * *"),
			Timeout:  getDurationEnv("SWEEP_TIMEOUT", "1m"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
