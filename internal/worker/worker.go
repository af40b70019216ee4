// Package worker runs the background side of bizreview: the periodic
// snapshot refresh and the consumer of rules-changed messages.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bizreview/internal/amqp"
	applog "bizreview/internal/log"
)

// Consumer delivers rules-changed messages until ctx ends.
type Consumer interface {
	ConsumeRulesChanged(ctx context.Context, handler func(context.Context, *amqp.RulesChangedMessage) error) error
}

// Processor is the snapshot refresher driven by the worker.
type Processor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleRulesChanged(ctx context.Context, msg *amqp.RulesChangedMessage) error
}

// Worker ties a processor to an optional message consumer.
type Worker struct {
	processor       Processor
	consumer        Consumer
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New creates a worker. consumer may be nil, in which case only the
// periodic refresh runs.
func New(processor Processor, consumer Consumer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		processor:       processor,
		consumer:        consumer,
		shutdownTimeout: 30 * time.Second,
		logger:          logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// Run blocks until ctx is cancelled or the consumer fails for good.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return err
	}
	defer w.stop()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "Skipping AMQP message consumption - no consumer configured")
		<-ctx.Done()
		return nil
	}

	err := w.consumer.ConsumeRulesChanged(ctx, w.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Message consumption failed", "error", err)
		return err
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg *amqp.RulesChangedMessage) error {
	start := time.Now()
	err := w.processor.HandleRulesChanged(ctx, msg)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to handle rules changed message",
			applog.FieldEventID, msg.ID,
			applog.FieldEventKind, msg.Kind,
			"error", err)
		return err
	}
	w.logger.InfoContext(ctx, "Rules changed message handled",
		applog.FieldEventID, msg.ID,
		applog.FieldEventKind, msg.Kind,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := w.processor.Stop(ctx); err != nil {
		w.logger.WarnContext(ctx, "Processor did not stop cleanly", "error", err)
	}
}
