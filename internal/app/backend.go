// Package app connects the configured store, reminder backend and completion
// provider for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-pantry/internal/config"
	"github.com/benvon/smart-pantry/internal/handlers"
	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/queue"
	"github.com/benvon/smart-pantry/internal/reminder"
	"github.com/benvon/smart-pantry/internal/services/ai"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// storePrefix namespaces pantry keys in a shared Redis
	storePrefix = "pantry:"

	webhookTimeout = 10 * time.Second

	queueMaxRetries   = 10
	queueInitialDelay = 2 * time.Second
	queueMaxDelay     = 30 * time.Second
)

// Backend is the store and reminder delivery chosen by configuration
type Backend struct {
	Store     kv.Store
	Reminders reminder.Service
	// Queue is set for the rabbitmq reminder backend
	Queue queue.JobQueue
	// Local is set for the local reminder backend
	Local  *reminder.LocalService
	logger *zap.Logger
}

// OpenBackend opens the store and the reminder backend. The caller must Close it.
func OpenBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	store, err := kv.Open(ctx, kv.Options{
		Backend:  cfg.StoreBackend,
		BoltPath: cfg.BoltPath,
		RedisURL: cfg.RedisURL,
		Prefix:   storePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	log.Info("store_opened", zap.String("backend", cfg.StoreBackend))

	b := &Backend{Store: store, logger: log}
	switch cfg.ReminderBackend {
	case config.ReminderRabbitMQ:
		q, err := ConnectQueue(ctx, cfg.RabbitMQURL, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		b.Queue = q
		b.Reminders = reminder.NewQueueService(q, reminder.NewRegistry(store), log.Named("reminders"))
	default:
		b.Local = reminder.NewLocalService(NewNotifier(cfg, log), log.Named("reminders"))
		b.Reminders = b.Local
	}
	log.Info("reminder_backend_ready", zap.String("backend", cfg.ReminderBackend))
	return b, nil
}

// NewNotifier returns the notifier for delivered reminders: always the log,
// plus the webhook when one is configured.
func NewNotifier(cfg *config.Config, log *zap.Logger) reminder.Notifier {
	notifiers := reminder.MultiNotifier{reminder.NewLogNotifier(log.Named("notifications"))}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, reminder.NewWebhookNotifier(cfg.NotifyWebhookURL, webhookTimeout))
	}
	return notifiers
}

// ConnectQueue connects to RabbitMQ, retrying with exponential backoff while
// the broker starts up.
func ConnectQueue(ctx context.Context, url string, log *zap.Logger) (*queue.RabbitMQQueue, error) {
	var lastErr error
	for attempt := 0; attempt < queueMaxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, log.Named("queue"))
		if err == nil {
			log.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := min(queueInitialDelay*time.Duration(1<<uint(attempt)), queueMaxDelay)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", queueMaxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", queueMaxRetries, lastErr)
}

// RedisClient returns the store's Redis client, or nil for other stores
func (b *Backend) RedisClient() *redis.Client {
	if rs, ok := b.Store.(*kv.RedisStore); ok {
		return rs.Client()
	}
	return nil
}

// HealthChecks returns the dependency checks for /healthz?mode=extended
func (b *Backend) HealthChecks() map[string]handlers.CheckFunc {
	checks := map[string]handlers.CheckFunc{"store": b.Store.Ping}
	if b.Queue != nil {
		checks["queue"] = b.Queue.HealthCheck
	}
	return checks
}

// Close stops local timers and closes the queue and the store
func (b *Backend) Close() error {
	var errs []error
	if b.Local != nil {
		b.Local.Close()
	}
	if b.Queue != nil {
		if err := b.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if err := b.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// NewCompletionProvider creates the configured completion provider. It returns
// nil without an error when no API key is set, which disables label reading
// and recipe suggestions.
func NewCompletionProvider(cfg *config.Config, log *zap.Logger, debugMode bool) (ai.CompletionProvider, error) {
	if cfg.OpenAIKey == "" {
		log.Warn("completion_provider_not_configured")
		return nil, nil
	}
	providerType := cfg.AIProvider
	if providerType == "" {
		providerType = "openai"
	}
	debug := "false"
	if debugMode {
		debug = "true"
	}
	return ai.DefaultRegistry().GetProvider(providerType, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
		"timeout":  cfg.AITimeout.String(),
		"debug":    debug,
	}, log.Named("ai"))
}
