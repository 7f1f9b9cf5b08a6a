// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/chat"
	"github.com/apollo-risk/risk-assistant/internal/config"
	"github.com/apollo-risk/risk-assistant/internal/handler"
	"github.com/apollo-risk/risk-assistant/internal/llm"
	"github.com/apollo-risk/risk-assistant/internal/middleware"
	natsclient "github.com/apollo-risk/risk-assistant/internal/nats"
	"github.com/apollo-risk/risk-assistant/internal/session"
	"github.com/apollo-risk/risk-assistant/internal/store"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
	"github.com/apollo-risk/risk-assistant/pkg/tracing"
)

const serviceName = "risk-assistant"

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the last Postgres migration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if *migrateDown {
		if err := rollback(cfg); err != nil {
			log.Fatal("migration rollback failed", zap.Error(err))
		}
		log.Info("rolled back last migration")
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func rollback(cfg *config.Config) error {
	if cfg.DBDriver != store.DriverPostgres {
		return fmt.Errorf("rollback is only supported for %s", store.DriverPostgres)
	}
	return store.RollbackMigration(cfg.DatabaseURL)
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server",
		zap.String("db_driver", cfg.DBDriver),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("auth_enabled", cfg.AuthEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
					log.Warn("tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	db, err := store.Open(ctx, store.Options{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DatabaseURL,
		Migrate: cfg.DBMigrate,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// A nil interface, not a typed nil, disables publishing.
	var events chat.EventPublisher
	var natsReady handler.Pinger
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		publisher := natsclient.NewPublisher(nc, log)
		if err := publisher.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		events = publisher
		natsReady = nc
	} else {
		log.Info("NATS_URL not set, chat events disabled")
	}

	provider := llm.Provider(cfg.LLMProvider)
	llmClient, err := llm.NewClient(llm.Options{
		Provider:        provider,
		OpenAIKey:       cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	model := cfg.OpenAIModel
	if provider == llm.ProviderAnthropic {
		model = cfg.AnthropicModel
	}

	sessions := session.NewStore(session.Options{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.SessionMax,
		Logger:      log,
	})
	sessions.StartJanitor(ctx, cfg.SessionSweepInterval)

	assembler := chat.NewAssembler(db, log, chat.AssemblerOptions{})
	chatSvc := chat.NewService(sessions, assembler, llmClient, events, log, chat.Options{
		Model:        model,
		MaxTokens:    cfg.LLMMaxTokens,
		Temperature:  &cfg.LLMTemperature,
		HistoryLimit: cfg.ChatHistoryLimit,
	})

	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": db,
		"nats":     natsReady,
	})
	chatHandler := handler.NewChatHandler(chatSvc, log)
	dashboardHandler := handler.NewDashboardHandler(db, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Send)
			r.Post("/feedback", chatHandler.Feedback)
			r.Get("/sessions/{id}", chatHandler.Session)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/summary", dashboardHandler.Summary)
			r.Get("/top-risks", dashboardHandler.TopRisks)
			r.Get("/trend", dashboardHandler.Trend)
			r.Get("/watchlist", dashboardHandler.Watchlist)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/sites", dashboardHandler.SiteReport)
			r.Get("/categories", dashboardHandler.CategoryReport)
			r.Get("/owners", dashboardHandler.OwnerReport)
		})

		r.With(middleware.RequireRole("editor")).Post("/risks/{id}/scores", dashboardHandler.AddScore)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
