package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bizreview/internal/amqp"
	"bizreview/internal/backend"
	"bizreview/internal/cli"
	"bizreview/internal/ledger"
	"bizreview/internal/services"
	"bizreview/internal/sheets"
	gsheet "bizreview/internal/sheets/google"
	"bizreview/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting bizreview-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	rt := cli.LoadRules(logger, cfg.MappingFile)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker consumes events; it never publishes them.
	backendCfg.AMQPURL = ""
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	var exporter sheets.ReportExporter
	if cfg.SheetsEnabled() {
		exp, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = exp
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled - refreshing on the interval only")
	}

	source := ledger.NewCachedSource(ledger.NewExportSource(cfg.LedgerDir, logger), cfg.AccountCacheTTL)
	reports := services.NewReportService(rt, source, be.Documents, nil, logger)
	processor := services.NewSnapshotProcessor(reports, be.Documents.Snapshots, exporter, reports,
		services.SnapshotProcessorConfig{
			Interval: cfg.SnapshotInterval,
			Months:   cfg.SnapshotMonths,
		}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	w := worker.New(processor, consumer, logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
