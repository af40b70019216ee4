// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/bizreview, cmd/bizreview-worker, and cmd/bizreview-classify.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bizreview/internal/config"
	applog "bizreview/internal/log"
	"bizreview/internal/rules"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *slog.Logger {
	return SetupLoggerTo(os.Stdout)
}

// SetupLoggerTo is SetupLogger writing to w. The classify CLI logs to
// stderr so stdout stays valid JSON.
func SetupLoggerTo(w io.Writer) *slog.Logger {
	levelName := os.Getenv("LOG_LEVEL")
	level, ok := applog.ParseLevel(levelName)
	logger := slog.New(applog.NewHandler(w, os.Getenv("LOG_FORMAT"), level))
	slog.SetDefault(logger)
	if !ok {
		logger.Warn("Unknown LOG_LEVEL, using info", "value", levelName)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// LoadRules builds the rule table from the mapping file, or the embedded
// default when path is empty. Exits the process on an invalid mapping.
func LoadRules(logger *slog.Logger, path string) *rules.RuleTable {
	mapping, err := rules.LoadConfig(path)
	if err != nil {
		logger.Error("Failed to load mapping configuration", "error", err, "path", path)
		os.Exit(1)
	}
	rt := rules.NewRuleTable(mapping)
	logger.Info("Mapping configuration loaded",
		"groups", len(rt.Groups()),
		"categories", len(rt.AllCategories()),
		"source", sourceName(path))
	return rt
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
