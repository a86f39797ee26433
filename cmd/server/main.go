// Data Science Tutor server
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

	"github.com/ashureev/ds-tutor/internal/api"
	"github.com/ashureev/ds-tutor/internal/config"
	"github.com/ashureev/ds-tutor/internal/identity"
	"github.com/ashureev/ds-tutor/internal/llm"
	"github.com/ashureev/ds-tutor/internal/middleware"
	"github.com/ashureev/ds-tutor/internal/store"
	"github.com/ashureev/ds-tutor/internal/tutor"
	"github.com/ashureev/ds-tutor/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Name)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	model, err := llm.New(ctx, cfg.Model, logger)
	if err != nil {
		return err
	}
	slog.Info("Model provider initialized", "provider", cfg.Model.Provider)

	svc, err := tutor.NewService(model,
		tutor.WithStructuredPrompt(cfg.Tutor.StructuredPrompt),
		tutor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	mgr, err := tutor.NewManager(repo, cfg.Tutor.DefaultLevel)
	if err != nil {
		return err
	}

	// Initialize handlers.
	tutorHandler := tutor.NewHandler(svc, mgr, repo, tutor.HandlerConfig{
		RateLimitRequests:  cfg.RateLimit.RequestsPerWindow,
		RateLimitWindow:    cfg.RateLimit.WindowDuration,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})
	defer tutorHandler.Close()
	wsHandler := tutor.NewWebSocketHandler(tutorHandler, cfg.FrontendURL, cfg.IsDevelopment())
	healthHandler := api.NewHealthHandler(repo, api.PingFunc(svc.Health))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg), identity.SessionHeaderName))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	tutorHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/tutor", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Model calls can take a while; the write timeout leaves room for them.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Model.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	tutor.StartIdleWorker(ctx, mgr, repo, tutor.IdleWorkerConfig{TTL: cfg.Tutor.SessionIdleTTL})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" || cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
