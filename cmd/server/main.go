// Package main is the entrypoint for the vidlens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/vidlens/internal/api"
	"github.com/kiranshivaraju/vidlens/internal/api/handler"
	mw "github.com/kiranshivaraju/vidlens/internal/api/middleware"
	"github.com/kiranshivaraju/vidlens/internal/api/response"
	"github.com/kiranshivaraju/vidlens/internal/app"
	"github.com/kiranshivaraju/vidlens/internal/cache"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"env", cfg.Server.Env,
		"allowed_platforms", cfg.Server.AllowedPlatforms,
		"auth_enabled", len(cfg.Server.APIKeyHashes) > 0,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect stores and assemble the job service
	a, err := app.Build(ctx, cfg, app.Options{Resume: true})
	if err != nil {
		return err
	}
	defer a.Close()
	svc := a.Jobs

	// 3. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Server.APIKeyHashes),
		RateLimit: mw.NewRateLimit(a.Cache, cfg.Server.RateLimitPerMin),

		HealthHandler:    healthHandler(a.Store, a.Cache),
		AnalyzeHandler:   handler.NewAnalyzeHandler(svc),
		StatusHandler:    handler.NewStatusHandler(svc),
		InfoHandler:      handler.NewInfoHandler(svc),
		ListJobsHandler:  handler.NewListJobsHandler(svc),
		StatsHandler:     handler.NewStatsHandler(svc),
		DeleteJobHandler: handler.NewDeleteJobHandler(svc),
		CancelJobHandler: handler.NewCancelJobHandler(svc),
	}

	router := api.NewRouter(deps)

	// 4. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Warn("background jobs did not finish before shutdown", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
