// Package services orchestrates the engine, the ledger source and the
// document stores behind the HTTP API, the worker and the CLI.
package services

import (
	"context"
	"log/slog"

	"bizreview/internal/cache"
	"bizreview/internal/report"
)

// EventPublisher announces stored rule changes to workers.
type EventPublisher interface {
	PublishRulesChanged(ctx context.Context, kind, key string) error
}

// Invalidator drops derived results after a rule change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ReportCache holds built reports keyed by request and day.
type ReportCache = cache.Store[*report.Report]

// orDefault falls back to slog.Default() for a nil logger.
func orDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
