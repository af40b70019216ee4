package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bizreview/internal/amqp"
	"bizreview/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured stores, then the optional event
// publisher. An unreachable broker is logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result = &BackendResult{Documents: storage.NewMemoryDocuments()}
		f.logger.Info("Initialized memory backend")
	case FileBackend:
		result = &BackendResult{Documents: storage.NewFileDocuments(config.DataDirectory)}
		f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)
	case SQLiteBackend:
		result, err = f.createSQLBackend(config.Type, func() (*storage.DB, error) { return storage.OpenSQLite(config.SQLiteDBPath) })
	case PostgresBackend:
		result, err = f.createSQLBackend(config.Type, func() (*storage.DB, error) { return storage.OpenPostgres(config.DatabaseURL) })
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Events = client
			result.Cleanup = chain(result.Cleanup, client.Close)
		}
	}
	return result, nil
}

func (f *DefaultFactory) createSQLBackend(t BackendType, open func() (*storage.DB, error)) (*BackendResult, error) {
	db, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", t, err)
	}
	f.logger.Info("Initialized SQL backend", "type", t.String())
	return &BackendResult{
		Documents: storage.NewSQLDocuments(db),
		Cleanup:   db.Close,
	}, nil
}

// chain runs first then next, returning the first error.
func chain(first, next CleanupFunc) CleanupFunc {
	if first == nil {
		return next
	}
	return func() error {
		err := first()
		if nerr := next(); err == nil {
			err = nerr
		}
		return err
	}
}
