// Package backend assembles the storage, relay and cloud pieces an entry
// point needs from one configuration, so cmd/billtrack and
// cmd/billtrack-worker share a single composition path.
package backend

import (
	"context"

	"billtrack/internal/amqp"
	"billtrack/internal/cloud"
	"billtrack/internal/storage"
)

// CleanupFunc releases the resources a backend holds open.
type CleanupFunc func() error

// BackendResult contains the assembled pieces. Relay and Cloud are nil
// when the corresponding configuration is absent or initialization failed
// softly; the sync service degrades accordingly.
type BackendResult struct {
	Store   storage.Store
	Relay   *amqp.Client
	Cloud   cloud.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Relay, optional with either storage type
	AMQPURL        string
	AMQPExchange   string
	AMQPQueue      string
	AMQPRoutingKey string

	// Google Sheets snapshot store, optional
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// BackendType represents the type of storage backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
