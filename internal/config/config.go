package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database
)

// Store backends
const (
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Reminder backends
const (
	ReminderLocal    = "local"
	ReminderRabbitMQ = "rabbitmq"
)

// Config holds application configuration
type Config struct {
	StoreBackend     string
	BoltPath         string
	RedisURL         string
	ReminderBackend  string
	RabbitMQURL      string
	RabbitMQPrefetch int
	NotifyWebhookURL string
	OpenAIKey        string
	AIProvider       string
	AIModel          string
	AIBaseURL        string
	AITimeout        time.Duration
	BarcodeAPIKey    string
	BarcodeBaseURL   string
	ServerPort       string
	FrontendURL      string
	EnableHSTS       bool
	RateLimit        string
	Timezone         string
	FlushInterval    time.Duration
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend:     getEnv("STORE_BACKEND", StoreBolt),
		BoltPath:         getEnv("BOLT_PATH", "pantry.db"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ReminderBackend:  getEnv("REMINDER_BACKEND", ReminderLocal),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		AITimeout:        getEnvDuration("AI_TIMEOUT", 30*time.Second),
		BarcodeAPIKey:    getEnv("BARCODE_API_KEY", ""),
		BarcodeBaseURL:   getEnv("BARCODE_BASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RateLimit:        getEnv("RATE_LIMIT", "5-S"),
		Timezone:         getEnv("TIMEZONE", ""),
		FlushInterval:    getEnvDuration("FLUSH_INTERVAL", time.Minute),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configured backends can work together
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (must be bolt, redis or memory)", c.StoreBackend)
	}

	switch c.ReminderBackend {
	case ReminderLocal:
	case ReminderRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for the rabbitmq reminder backend")
		}
		// The worker process must see the same live reminder registry
		if c.StoreBackend != StoreRedis {
			return fmt.Errorf("the rabbitmq reminder backend requires STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown REMINDER_BACKEND %q (must be local or rabbitmq)", c.ReminderBackend)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
		}
	}

	return nil
}

// Location returns the configured time zone, or time.Local when unset
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
