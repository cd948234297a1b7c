package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application-wide configuration loaded from environment
// variables.
type Config struct {
	DatabaseURL   string
	AppEnv        string
	GCSBucketName string
	SentryDSN     string
}

// LoadConfig reads configuration from environment variables or a .env file.
// It is the single source of truth for application configuration.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists; in production the variables are set
	// directly in the environment.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("FATAL: DATABASE_URL environment variable not set")
	}

	gcsBucketName := os.Getenv("GCS_BUCKET_NAME")
	if gcsBucketName == "" {
		return nil, fmt.Errorf("FATAL: GCS_BUCKET_NAME environment variable not set")
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN == "" {
		return nil, fmt.Errorf("FATAL: SENTRY_DSN environment variable not set")
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	return &Config{
		DatabaseURL:   dbURL,
		AppEnv:        appEnv,
		GCSBucketName: gcsBucketName,
		SentryDSN:     sentryDSN,
	}, nil
}
