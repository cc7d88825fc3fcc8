package backend

import (
	"context"
	"fmt"

	"billtrack/internal/amqp"
	"billtrack/internal/cloud"
	"billtrack/internal/cloud/google"
	"billtrack/internal/log"
	"billtrack/internal/storage"
	"billtrack/internal/storage/memory"
	"billtrack/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewFromEnv(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	var store storage.Store
	switch config.Type {
	case SQLiteBackend:
		s, err := sqlite.New(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		store = s
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.Info("Initialized in-memory store")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	relay := f.createRelay(config)
	cloudStore := f.createCloudStore(ctx, config)

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"relay_enabled", relay != nil,
		"cloud_enabled", cloudStore != nil)

	cleanup := func() error {
		if relay != nil {
			if err := relay.Close(); err != nil {
				f.logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		return store.Close()
	}

	return &BackendResult{
		Store:   store,
		Relay:   relay,
		Cloud:   cloudStore,
		Cleanup: cleanup,
	}, nil
}

// createRelay dials the AMQP broker when a URL is configured. Failure is
// soft: the process continues and syncs in-process instead.
func (f *DefaultFactory) createRelay(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, config.AMQPRoutingKey)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without relay",
			log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// createCloudStore builds the Google Sheets snapshot store when a
// spreadsheet is configured. Failure is soft for the same reason.
func (f *DefaultFactory) createCloudStore(ctx context.Context, config Config) cloud.Store {
	if config.GoogleSpreadsheetID == "" {
		return nil
	}
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		SheetName:     config.GoogleSheetName,
		ClientFile:    config.GoogleOAuthClientFile,
		ClientJSON:    config.GoogleOAuthClientJSON,
		TokenFile:     config.GoogleOAuthTokenFile,
		TokenJSON:     config.GoogleOAuthTokenJSON,
	})
	if err != nil {
		f.logger.Warn("Failed to initialize Google Sheets client, continuing without cloud sync",
			log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized Google Sheets snapshot store",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return cli
}
