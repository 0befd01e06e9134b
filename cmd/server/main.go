package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/smart-pantry/internal/app"
	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/config"
	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/benvon/smart-pantry/internal/handlers"
	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/benvon/smart-pantry/internal/queue"
	"github.com/benvon/smart-pantry/internal/services/ai"
	"github.com/benvon/smart-pantry/internal/services/barcode"
	"github.com/benvon/smart-pantry/internal/telemetry"
	"github.com/benvon/smart-pantry/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for completion API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("reminder_backend", cfg.ReminderBackend),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx := context.Background()

	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else if tp, err := telemetry.InitTracer(ctx, telemetry.ServerServiceName, cfg.OTELEndpoint); err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	backend, err := app.OpenBackend(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_backend", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLogger.Warn("failed_to_close_backend", zap.Error(err))
		}
	}()

	clock := calendar.SystemClock{Location: cfg.Location()}
	core := cascade.Open(ctx, backend.Store, backend.Reminders, clock, logger.Component(zapLogger, "cascade"))

	// Local timers do not survive a restart
	if backend.Local != nil {
		restored := core.RestoreReminders(ctx)
		zapLogger.Info("reminders_restored", zap.Int("count", restored))
	}

	provider, err := app.NewCompletionProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_completion_provider_features_disabled", zap.Error(err))
		provider = nil
	}
	var completer entry.Completer
	var suggester handlers.RecipeSuggester
	if provider != nil {
		assistant := ai.NewAssistant(provider, clock, cfg.AITimeout, logger.Component(zapLogger, "assistant"))
		completer = assistant
		suggester = assistant
	}

	lookup := barcode.NewClient(cfg.BarcodeBaseURL, cfg.BarcodeAPIKey, backend.Store, logger.Component(zapLogger, "barcode"))
	draft := entry.NewDraft(core, completer, barcode.NewSession(lookup), clock, logger.Component(zapLogger, "draft"))

	router, err := app.NewRouter(app.RouterDeps{
		Core:        core,
		Draft:       draft,
		Suggester:   suggester,
		Clock:       clock,
		Health:      backend.HealthChecks(),
		RedisClient: backend.RedisClient(),
		OpenAPIPath: filepath.Join("api", "openapi", "openapi.yaml"),
		FrontendURL: cfg.FrontendURL,
		RateLimit:   cfg.RateLimit,
		EnableHSTS:  cfg.EnableHSTS,
		Tracing:     tracing,
		Logger:      zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_create_router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	flusher := workers.NewStateFlusher(core, cfg.FlushInterval, logger.Component(zapLogger, "flusher"))
	go func() {
		if err := flusher.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("state_flusher_stopped_with_error", zap.Error(err))
		}
	}()

	if purger, ok := backend.Queue.(queue.DLQPurger); ok {
		sweeper := queue.NewDeadLetterSweeper(purger, queue.DefaultSweepInterval, queue.DefaultDeadRetention,
			logger.Component(zapLogger, "dead_letters"))
		go func() {
			if err := sweeper.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dead_letter_sweeper_stopped_with_error", zap.Error(err))
			}
		}()
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	if err := draft.Close(shutdownCtx); err != nil {
		zapLogger.Warn("draft_close_timed_out", zap.Error(err))
	}
	if err := core.Terminate(shutdownCtx); err != nil {
		zapLogger.Error("failed_to_persist_state", zap.Error(err))
	}
	if err := core.Close(shutdownCtx); err != nil {
		zapLogger.Warn("reminder_dispatch_not_drained", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
