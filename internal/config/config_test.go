package config

import (
	"testing"
	"time"
)

// configEnvVars lists every variable Load reads, so each case starts clean
var configEnvVars = []string{
	"STORE_BACKEND", "BOLT_PATH", "REDIS_URL", "REMINDER_BACKEND", "RABBITMQ_URL",
	"RABBITMQ_PREFETCH", "NOTIFY_WEBHOOK_URL", "OPENAI_API_KEY", "AI_PROVIDER",
	"AI_MODEL", "AI_BASE_URL", "AI_TIMEOUT", "BARCODE_API_KEY", "BARCODE_BASE_URL",
	"SERVER_PORT", "FRONTEND_URL", "ENABLE_HSTS", "RATE_LIMIT", "TIMEZONE",
	"FLUSH_INTERVAL", "WORKER_DEBUG_MODE", "SERVER_DEBUG_MODE", "OTEL_ENABLED",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// Tests in this file use t.Setenv and therefore cannot run in parallel.

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.StoreBackend != StoreBolt || cfg.BoltPath != "pantry.db" {
					t.Errorf("Expected bolt store at pantry.db, got %s %s", cfg.StoreBackend, cfg.BoltPath)
				}
				if cfg.ReminderBackend != ReminderLocal {
					t.Errorf("Expected local reminders, got %s", cfg.ReminderBackend)
				}
				if cfg.ServerPort != "8080" {
					t.Errorf("Expected default ServerPort to be '8080', got '%s'", cfg.ServerPort)
				}
				if cfg.RateLimit != "5-S" {
					t.Errorf("Expected default RateLimit '5-S', got '%s'", cfg.RateLimit)
				}
				if cfg.AITimeout != 30*time.Second {
					t.Errorf("Expected default AITimeout 30s, got %v", cfg.AITimeout)
				}
				if cfg.FlushInterval != time.Minute {
					t.Errorf("Expected default FlushInterval 1m, got %v", cfg.FlushInterval)
				}
				if cfg.Location() != time.Local {
					t.Error("Expected local time zone by default")
				}
			},
		},
		{
			name: "rabbitmq with redis",
			envVars: map[string]string{
				"STORE_BACKEND":     "redis",
				"REDIS_URL":         "redis://cache:6379/1",
				"REMINDER_BACKEND":  "rabbitmq",
				"RABBITMQ_URL":      "amqp://guest:guest@mq:5672/",
				"RABBITMQ_PREFETCH": "4",
				"FLUSH_INTERVAL":    "0",
				"AI_TIMEOUT":        "10",
				"TIMEZONE":          "Europe/Berlin",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.RabbitMQPrefetch != 4 {
					t.Errorf("Expected prefetch 4, got %d", cfg.RabbitMQPrefetch)
				}
				if cfg.FlushInterval != 0 {
					t.Errorf("Expected flush disabled, got %v", cfg.FlushInterval)
				}
				if cfg.AITimeout != 10*time.Second {
					t.Errorf("Expected bare number as seconds, got %v", cfg.AITimeout)
				}
				if cfg.Location().String() != "Europe/Berlin" {
					t.Errorf("Unexpected location %s", cfg.Location())
				}
			},
		},
		{
			name:        "rabbitmq requires url",
			envVars:     map[string]string{"STORE_BACKEND": "redis", "REMINDER_BACKEND": "rabbitmq"},
			expectError: true,
		},
		{
			name: "rabbitmq requires shared store",
			envVars: map[string]string{
				"REMINDER_BACKEND": "rabbitmq",
				"RABBITMQ_URL":     "amqp://localhost/",
			},
			expectError: true,
		},
		{
			name:        "unknown store backend",
			envVars:     map[string]string{"STORE_BACKEND": "postgres"},
			expectError: true,
		},
		{
			name:        "unknown reminder backend",
			envVars:     map[string]string{"REMINDER_BACKEND": "sms"},
			expectError: true,
		},
		{
			name:        "invalid timezone",
			envVars:     map[string]string{"TIMEZONE": "Mars/Olympus"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range configEnvVars {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"env var set to 'true'", "true", false, true},
		{"env var set to '1'", "1", false, true},
		{"env var set to 'yes'", "yes", false, true},
		{"env var set to 'false'", "false", true, false},
		{"env var not set", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_KEY", tt.value)
			if got := getEnvBool("TEST_BOOL_KEY", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"bare seconds", "15", 15 * time.Second},
		{"garbage uses default", "soon", time.Minute},
		{"not set uses default", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_KEY", tt.value)
			if got := getEnvDuration("TEST_DURATION_KEY", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
