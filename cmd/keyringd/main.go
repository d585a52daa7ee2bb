// Package main is the entry point for the keyring daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sendnodes-io/sendwallet-sub000/internal/app"
	"github.com/sendnodes-io/sendwallet-sub000/internal/audit"
	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
	"github.com/sendnodes-io/sendwallet-sub000/internal/handlers"
	"github.com/sendnodes-io/sendwallet-sub000/internal/metrics"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.Security.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting keyringd",
		"version", version,
		"env", cfg.Security.Environment,
		"storage", cfg.Storage.Backend,
		"session_cache", cfg.Session.Cache,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	// Resume a cached session from a previous run
	restored, err := a.Session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	state, err := a.Session.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read vault state: %w", err)
	}
	logger.Info("session ready", "state", state, "restored", restored)

	router := handlers.NewRouter(&handlers.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Session: a.Session,
		Signer:  a.Signer,
		Events:  a.Events,
		Limiter: a.Limiter,
		Checks:  a.Checks,
		Audit:   a.Audit,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Start background tasks
	go a.Session.Run(ctx, cfg.Session.AutolockInterval)
	go audit.NewRecorder(a.Audit, a.Events).Run(ctx)
	go audit.RunCleanup(ctx, a.Audit, cfg.Audit.Retention, cfg.Audit.CleanupInterval)

	var pool *pgxpool.Pool
	if a.DB != nil {
		pool = a.DB.Pool
	}
	go metrics.StartCollector(ctx, a.Session, pool, 30*time.Second)

	// Start server in goroutine
	go func() {
		logger.Info("server listening",
			"addr", cfg.ServerAddr(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Event streams end once the base context is cancelled.
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
