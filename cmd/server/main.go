// AI Lab Partner server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/ailab/internal/agent"
	"github.com/ashureev/ailab/internal/api"
	"github.com/ashureev/ailab/internal/catalog"
	"github.com/ashureev/ailab/internal/config"
	"github.com/ashureev/ailab/internal/events"
	"github.com/ashureev/ailab/internal/generator"
	"github.com/ashureev/ailab/internal/metrics"
	"github.com/ashureev/ailab/internal/middleware"
	"github.com/ashureev/ailab/internal/report"
	"github.com/ashureev/ailab/internal/session"
	"github.com/ashureev/ailab/internal/store"
	"github.com/ashureev/ailab/internal/stream"
	"github.com/ashureev/ailab/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

var version = "dev"

const replayPerSession = 200

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"addr", cfg.Addr(),
		"dev", cfg.IsDevelopment(),
		"ai_provider", cfg.AI.Provider,
		"version", version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	cat, err := catalog.Default()
	if err != nil {
		slog.Error("Failed to load experiment catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Experiment catalog loaded", "experiments", cat.Len())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	m := metrics.New()

	gen, err := generator.New(ctx, cfg.Generator())
	if err != nil {
		slog.Error("Failed to initialize text generation backend", "provider", cfg.AI.Provider, "error", err)
		os.Exit(1)
	}
	if closer, ok := gen.(interface{ Close() }); ok {
		defer closer.Close()
	}
	if cfg.Generator().APIKey == "" && (cfg.AI.Provider == generator.ProviderOpenAI || cfg.AI.Provider == generator.ProviderGroq) {
		slog.Warn("No API key configured, agents will answer with fallback messages", "provider", cfg.AI.Provider)
	}

	personas, err := cfg.Personas()
	if err != nil {
		slog.Error("Failed to load personas", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(cfg.ConversationLogger(), logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		nc, err := events.NewNATS(cfg.NATSURL, logger)
		if err != nil {
			slog.Warn("Failed to connect to NATS, lifecycle events disabled", "url", cfg.NATSURL, "error", err)
		} else {
			publisher = nc
			slog.Info("Publishing lifecycle events to NATS", "url", cfg.NATSURL)
		}
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			slog.Error("Failed to close event publisher", "error", closeErr)
		}
	}()

	hub := stream.NewHub(replayPerSession)
	writer := report.NewWriter(cfg.ReportsDir, repo, logger)

	// Initialize services.
	mgr := session.NewManager(session.Deps{
		Catalog:         cat,
		Generator:       generator.NewInstrumented(gen, m),
		Personas:        personas,
		Reporter:        writer,
		Publisher:       publisher,
		Stream:          hub,
		ConversationLog: conversationLogger,
		Metrics:         m,
		Logger:          logger,
	})

	// Initialize handlers.
	baseHandler := api.NewHandler(cat, mgr, writer, version, logger)
	wsHandler := stream.NewWebSocketHandler(hub, mgr.Active, cfg.FrontendURL, cfg.IsDevelopment())
	spa, err := web.Handler()
	if err != nil {
		slog.Error("Failed to load embedded console", "error", err)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment())))

	baseHandler.RegisterRoutes(r)
	r.Handle("/metrics", m.Handler())

	// WebSocket endpoint.
	r.Get("/ws/sessions/{session_id}", wsHandler.ServeHTTP)

	// Serve embedded console (SPA catch-all).
	r.Handle("/*", spa)

	// WebSocket streams are long lived, so there is no write timeout.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	mgr.StartTTLWorker(ctx, session.Retention{
		Idle:      cfg.SessionTTL,
		Completed: cfg.CompletedRetention,
	}, nil)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
