package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName    string
	AppVersion string
	Port       string

	Environment   string
	AuthJWTSecret string
	AdminAPIToken string

	// BusinessID scopes every billing command and the push-channel
	// subscription to one tenant business.
	BusinessID string

	// Retry convergence tuning.
	RetryProgressInterval time.Duration

	// Bulk job tuning. FallbackTimeout bounds the wait for a completion
	// event; Retention keeps finished jobs queryable for a while.
	BulkFallbackTimeout time.Duration
	BulkRetention       time.Duration
	BulkSweepInterval   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()
	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:               getenv("APP_SERVICE", "invoicing-console"),
		AppVersion:            getenv("APP_VERSION", "0.1.0"),
		Port:                  getenv("PORT", "8082"),
		Environment:           environment,
		AuthJWTSecret:         strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AdminAPIToken:         strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		BusinessID:            strings.TrimSpace(getenv("BUSINESS_ID", "")),
		RetryProgressInterval: time.Millisecond * time.Duration(getenvInt("RETRY_PROGRESS_INTERVAL_MS", 500)),
		BulkFallbackTimeout:   time.Second * time.Duration(getenvInt("BULK_FALLBACK_TIMEOUT_SECONDS", 30)),
		BulkRetention:         time.Minute * time.Duration(getenvInt("BULK_RETENTION_MINUTES", 15)),
		BulkSweepInterval:     time.Second * time.Duration(getenvInt("BULK_SWEEP_INTERVAL_SECONDS", 60)),
	}

	return &cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
