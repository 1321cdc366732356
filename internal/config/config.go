package config

import (
	"os"
	"strconv"
	"time"
)

// DefaultSessionSecret is only suitable for local development.
const DefaultSessionSecret = "thisisasecret"

// Config holds all configuration for the storefront service
type Config struct {
	ServiceName    string
	HTTPPort       string
	HTTPHealthPort string
	GRPCPort       string
	LogLevel       string

	// BooksDSN and UsersDSN select two independent stores. A postgres:// URL
	// uses the postgres driver, anything else is a sqlite file path.
	BooksDSN string
	UsersDSN string

	SessionSecret string
	SessionTTL    time.Duration

	UploadDir      string
	MaxUploadBytes int64

	// RabbitMQURL empty disables catalog events.
	RabbitMQURL string

	// CatalogRequireLogin gates /add, /edit and /delete behind a session.
	CatalogRequireLogin bool
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		ServiceName:         getEnv("SERVICE_NAME", "storefront"),
		HTTPPort:            getEnv("HTTP_PORT", "8000"),
		HTTPHealthPort:      getEnv("HTTP_HEALTH_PORT", "8080"),
		GRPCPort:            getEnv("GRPC_PORT", "50051"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		BooksDSN:            getEnv("BOOKS_DSN", "books.db"),
		UsersDSN:            getEnv("USERS_DSN", "user.db"),
		SessionSecret:       getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
		UploadDir:           getEnv("UPLOAD_DIR", "static/images"),
		MaxUploadBytes:      getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		CatalogRequireLogin: getEnvBool("CATALOG_REQUIRE_LOGIN", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
