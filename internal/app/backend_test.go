package app

import (
	"context"
	"testing"

	"github.com/benvon/smart-pantry/internal/config"
	"github.com/benvon/smart-pantry/internal/reminder"
	"go.uber.org/zap"
)

func TestOpenBackend_MemoryLocal(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{StoreBackend: config.StoreMemory, ReminderBackend: config.ReminderLocal}
	b, err := OpenBackend(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenBackend failed: %v", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if b.Local == nil || b.Queue != nil {
		t.Error("Expected local reminders without a queue")
	}
	if b.RedisClient() != nil {
		t.Error("Expected no redis client for the memory store")
	}
	checks := b.HealthChecks()
	if len(checks) != 1 {
		t.Fatalf("Expected only the store check, got %d", len(checks))
	}
	if err := checks["store"](context.Background()); err != nil {
		t.Errorf("Store check failed: %v", err)
	}
}

func TestOpenBackend_UnknownStore(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{StoreBackend: "postgres"}
	if _, err := OpenBackend(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("Expected error for unknown store")
	}
}

func TestNewNotifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		webhook string
		want    int
	}{
		{"log only", "", 1},
		{"log and webhook", "http://hooks.local/pantry", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := NewNotifier(&config.Config{NotifyWebhookURL: tt.webhook}, zap.NewNop())
			multi, ok := n.(reminder.MultiNotifier)
			if !ok {
				t.Fatalf("Expected MultiNotifier, got %T", n)
			}
			if len(multi) != tt.want {
				t.Errorf("Expected %d notifiers, got %d", tt.want, len(multi))
			}
		})
	}
}

func TestNewCompletionProvider(t *testing.T) {
	t.Parallel()

	p, err := NewCompletionProvider(&config.Config{}, zap.NewNop(), false)
	if err != nil || p != nil {
		t.Errorf("Expected no provider without a key, got %v %v", p, err)
	}

	p, err = NewCompletionProvider(&config.Config{OpenAIKey: "sk-test", AIProvider: "openai"}, zap.NewNop(), false)
	if err != nil || p == nil {
		t.Errorf("Expected openai provider, got %v %v", p, err)
	}

	if _, err := NewCompletionProvider(&config.Config{OpenAIKey: "sk-test", AIProvider: "llama"}, zap.NewNop(), false); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
