package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bizreview/internal/amqp"
	"bizreview/internal/core"
	applog "bizreview/internal/log"
	"bizreview/internal/sheets"
	"bizreview/internal/storage"
)

// SnapshotProcessorConfig holds configuration for the snapshot processor
type SnapshotProcessorConfig struct {
	// Interval is how often every tracked month is re-classified (default: 1h)
	Interval time.Duration

	// Months is how many months, the current one included, are refreshed (default: 13)
	Months int
}

// DefaultSnapshotProcessorConfig returns sensible defaults
func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		Interval: time.Hour,
		Months:   13,
	}
}

// Classifier is the part of ReportService the processor needs.
type Classifier interface {
	Classify(ctx context.Context, month core.MonthKey) (core.Classification, error)
}

// SnapshotProcessor keeps stored monthly snapshots, and optionally a
// spreadsheet, in line with the ledger and the current overrides.
type SnapshotProcessor struct {
	classifier  Classifier
	snapshots   storage.SnapshotStore
	exporter    sheets.ReportExporter
	invalidator Invalidator
	config      SnapshotProcessorConfig
	logger      *slog.Logger
	now         func() time.Time

	// refreshMu keeps timer and event refreshes from interleaving.
	refreshMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// ErrExport marks a month whose snapshot was stored but whose export failed.
var ErrExport = errors.New("export")

// NewSnapshotProcessor creates a new processor. exporter and invalidator may be nil.
func NewSnapshotProcessor(
	classifier Classifier,
	snapshots storage.SnapshotStore,
	exporter sheets.ReportExporter,
	invalidator Invalidator,
	config SnapshotProcessorConfig,
	logger *slog.Logger,
) *SnapshotProcessor {
	def := DefaultSnapshotProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Months <= 0 {
		config.Months = def.Months
	}
	return &SnapshotProcessor{
		classifier:  classifier,
		snapshots:   snapshots,
		exporter:    exporter,
		invalidator: invalidator,
		config:      config,
		logger:      orDefault(logger).With(applog.FieldComponent, applog.ComponentWorker),
		now:         time.Now,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Snapshot processor started",
		"interval", p.config.Interval,
		applog.FieldMonths, p.config.Months)

	return nil
}

// Stop signals the loop and waits for the current refresh to finish. After a
// timed-out Stop the processor still reports running; calling Stop again
// waits for the same loop without signalling it twice.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	if stopCh != nil {
		close(stopCh)
		p.stopCh = nil
	}
	p.mu.Unlock()

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Snapshot processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Refresh immediately on startup
	p.refreshLogged(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshLogged(ctx)
		}
	}
}

func (p *SnapshotProcessor) refreshLogged(ctx context.Context) {
	if err := p.Refresh(ctx, p.config.Months); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.ErrorContext(ctx, "Snapshot refresh failed", "error", err)
	}
}

// Refresh re-classifies the last months months and stores each snapshot.
// A failing month is logged and skipped. After every month has been tried
// the first snapshot error is returned; when every snapshot was stored but
// an export failed, the first export error is returned, matching ErrExport.
func (p *SnapshotProcessor) Refresh(ctx context.Context, months int) error {
	if months <= 0 {
		months = p.config.Months
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	start := time.Now()
	current := core.MonthKeyOf(p.now())
	var firstErr, firstExportErr error
	refreshed := 0

	for i := 0; i < months; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		month := current.Offset(-i)
		if err := p.refreshMonth(ctx, month); err != nil {
			p.logger.WarnContext(ctx, "Failed to refresh month",
				applog.FieldMonth, month.String(),
				"error", err)
			switch {
			case errors.Is(err, ErrExport):
				if firstExportErr == nil {
					firstExportErr = err
				}
			case firstErr == nil:
				firstErr = err
			}
			continue
		}
		refreshed++
	}

	if p.invalidator != nil {
		if err := p.invalidator.Invalidate(ctx); err != nil {
			p.logger.WarnContext(ctx, "Failed to invalidate report cache", "error", err)
		}
	}

	p.logger.InfoContext(ctx, "Snapshots refreshed",
		applog.FieldMonths, refreshed,
		"failed", months-refreshed,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if firstErr != nil {
		return firstErr
	}
	return firstExportErr
}

func (p *SnapshotProcessor) refreshMonth(ctx context.Context, month core.MonthKey) error {
	c, err := p.classifier.Classify(ctx, month)
	if err != nil {
		return err
	}
	if err := p.snapshots.SaveSnapshot(ctx, month, c.Groups); err != nil {
		return fmt.Errorf("save snapshot %s: %w", month, err)
	}
	if p.exporter != nil {
		if err := p.exporter.ExportMonth(ctx, month, c.Groups); err != nil {
			return fmt.Errorf("%w %s: %w", ErrExport, month, err)
		}
	}
	p.logger.DebugContext(ctx, "Month refreshed",
		applog.FieldMonth, month.String(),
		applog.FieldUncategorized, len(c.Uncategorized))
	return nil
}

// HandleRulesChanged refreshes every tracked month after a stored decision
// changed. Distribution and allocation changes do not alter snapshots, so
// only override messages trigger a refresh. Once every snapshot is stored
// the message is done: a failed export is logged and picked up by the next
// periodic refresh.
func (p *SnapshotProcessor) HandleRulesChanged(ctx context.Context, msg *amqp.RulesChangedMessage) error {
	p.logger.InfoContext(ctx, "Processing rules changed message",
		applog.FieldEventID, msg.ID,
		applog.FieldEventKind, msg.Kind)

	if msg.Kind != amqp.KindOverride {
		if p.invalidator != nil {
			return p.invalidator.Invalidate(ctx)
		}
		return nil
	}
	err := p.Refresh(ctx, p.config.Months)
	if errors.Is(err, ErrExport) {
		p.logger.WarnContext(ctx, "Snapshots stored but export failed",
			applog.FieldEventID, msg.ID,
			"error", err)
		return nil
	}
	return err
}
