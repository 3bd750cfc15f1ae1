package backend

import (
	"context"
	"fmt"
	"io"

	applog "finanlito/internal/log"
	"finanlito/internal/memory"
	"finanlito/internal/services"
	"finanlito/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	dial   PublisherDialer
}

// NewFactory creates a backend factory. A nil dial uses DialAMQP.
func NewFactory(logger *applog.Logger, dial PublisherDialer) *DefaultFactory {
	if logger == nil {
		logger = applog.FromSlog(nil, applog.ComponentBackend)
	} else {
		logger = logger.WithComponent(applog.ComponentBackend)
	}
	if dial == nil {
		dial = DialAMQP
	}
	return &DefaultFactory{logger: logger, dial: dial}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   Backend
		cleanup CleanupFunc
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		version, dirty, err := storage.SchemaVersion(config.SQLiteDBPath)
		if err != nil {
			f.logger.WarnContext(ctx, "Could not read schema version", "error", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"schema_version", version,
			"schema_dirty", dirty)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store = memory.NewFromFiles(dataDir)
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// Change events are optional: a broker outage at startup degrades to a
	// backend without publishing.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		p, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = p
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if publisher == nil {
		if c, ok := store.(io.Closer); ok {
			cleanup = c.Close
		}
		return &BackendResult{Backend: store, Cleanup: cleanup}, nil
	}

	svc := services.NewTransactionService(store, publisher)
	return &BackendResult{
		Backend:    svc,
		Cleanup:    svc.Close,
		Publishing: true,
	}, nil
}
