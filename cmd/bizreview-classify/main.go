// Command bizreview-classify classifies one month of exported ledger data
// and prints the result as JSON.
//
//	bizreview-classify -month 2025-03 -ledger ./data/ledger
//	bizreview-classify -month 2025-03 -stdin < export.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bizreview/internal/backend"
	"bizreview/internal/cli"
	"bizreview/internal/config"
	"bizreview/internal/core"
	"bizreview/internal/ledger"
	"bizreview/internal/services"
	"bizreview/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLoggerTo(os.Stderr)
	cfg := config.Load()

	var (
		monthFlag = flag.String("month", "", "month to classify as YYYY-MM (default: current month)")
		ledgerDir = flag.String("ledger", cfg.LedgerDir, "directory holding the ledger export files")
		fromStdin = flag.Bool("stdin", false, "read a single ledger export document from stdin")
		mapping   = flag.String("mapping", cfg.MappingFile, "mapping configuration file (default: embedded)")
		noStore   = flag.Bool("no-overrides", false, "ignore stored manual overrides")
		timeout   = flag.Duration("timeout", time.Minute, "overall time limit")
	)
	flag.Parse()

	month := core.MonthKeyOf(time.Now())
	if *monthFlag != "" {
		m, err := core.ParseMonthKey(*monthFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -month %q: %v\n", *monthFlag, err)
			os.Exit(2)
		}
		month = m
	}

	rt := cli.LoadRules(logger, *mapping)

	var source ledger.Source
	if *fromStdin {
		data, err := ledger.ReadData(os.Stdin)
		if err != nil {
			logger.Error("Failed to read ledger export from stdin", "error", err)
			os.Exit(1)
		}
		source = ledger.NewMemorySource(data)
	} else {
		source = ledger.NewExportSource(*ledgerDir, logger)
	}

	docs := storage.NewMemoryDocuments()
	if !*noStore {
		be, err := openDocuments(cfg, logger)
		if err != nil {
			logger.Error("Failed to open document store", "error", err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		defer be.Close()
		docs = be.Documents
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reports := services.NewReportService(rt, source, docs, nil, logger)
	c, err := reports.Classify(ctx, month)
	if err != nil {
		logger.Error("Classification failed", "error", err, "month", month.String())
		os.Exit(1)
	}

	out := struct {
		Month              string                   `json:"month"`
		Groups             core.Groups              `json:"groups"`
		Uncategorized      []core.UncategorizedLine `json:"uncategorized"`
		Ignored            core.IgnoredSummary      `json:"ignored"`
		CategorizedTotal   string                   `json:"categorizedTotal"`
		UncategorizedTotal string                   `json:"uncategorizedTotal"`
	}{
		Month:              month.String(),
		Groups:             c.Groups,
		Uncategorized:      c.Uncategorized,
		Ignored:            c.Ignored,
		CategorizedTotal:   c.CategorizedTotal().StringFixed(2),
		UncategorizedTotal: c.UncategorizedTotal().StringFixed(2),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("Failed to write output", "error", err)
		os.Exit(1)
	}
}

// openDocuments opens the configured store read-side only; events are off.
func openDocuments(cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.AMQPURL = ""
	return backend.NewFactory(logger).CreateBackend(context.Background(), bc)
}
