package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"bizreview/internal/backend"
	"bizreview/internal/cache"
	"bizreview/internal/cli"
	"bizreview/internal/config"
	apphttp "bizreview/internal/http"
	"bizreview/internal/ledger"
	"bizreview/internal/middleware/ratelimit"
	"bizreview/internal/report"
	"bizreview/internal/services"
)

const reportCacheSize = 256

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	rt := cli.LoadRules(logger, cfg.MappingFile)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	source := ledger.NewCachedSource(ledger.NewExportSource(cfg.LedgerDir, logger), cfg.AccountCacheTTL)

	reportCache, closeCache := newReportCache(cfg, logger)
	reports := services.NewReportService(rt, source, be.Documents, reportCache, logger)

	var events services.EventPublisher
	if be.Events != nil {
		events = be.Events
	}
	actions := services.NewActionService(rt, be.Documents, events, reports, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		Reports: reports,
		Actions: actions,
		Rules:   rt,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		},
		Ready: []apphttp.ReadinessCheck{
			func(ctx context.Context) error {
				_, err := be.Documents.Overrides.Load(ctx)
				return err
			},
		},
		Logger: logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		closeCache()
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting bizreview server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"ledger_dir", cfg.LedgerDir,
		"events", be.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newReportCache prefers Redis when configured so several server processes
// share invalidation; otherwise reports are cached in process.
func newReportCache(cfg *config.Config, logger *slog.Logger) (services.ReportCache, func()) {
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := cache.DialRedis(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("Report cache backed by Redis", "ttl", cfg.ReportCacheTTL)
			rc := cache.NewRedis[*report.Report](client, cache.DefaultPrefix, cfg.ReportCacheTTL, logger)
			return rc, func() { _ = rc.Close() }
		}
		logger.Warn("Redis unavailable, falling back to in-process report cache", "error", err)
	}

	local := cache.NewLocal[*report.Report](reportCacheSize, cfg.ReportCacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(local)
	manager.StartCleanup(time.Minute)
	logger.Info("Report cache in process", "size", reportCacheSize, "ttl", cfg.ReportCacheTTL)
	return local, manager.Stop
}
