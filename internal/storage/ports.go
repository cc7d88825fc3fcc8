// Package storage defines the persistence ports for bills, settings and
// sync bookkeeping, with sqlite and in-memory backends in subpackages.
package storage

import (
	"context"
	"time"

	"billtrack/internal/core"
)

// BillStore persists the bill collection. Implementations return deep
// copies; callers never share payment history slices with the store.
type BillStore interface {
	CreateBill(ctx context.Context, bill core.Bill) error
	GetBill(ctx context.Context, id string) (core.Bill, error)
	UpdateBill(ctx context.Context, bill core.Bill) error
	DeleteBill(ctx context.Context, id string) error
	ListBills(ctx context.Context) ([]core.Bill, error)
	// ReplaceAllBills atomically swaps the entire collection. Import,
	// regeneration and cloud reconcile go through here.
	ReplaceAllBills(ctx context.Context, bills []core.Bill) error
	// AppendPayment appends one payment to the bill's history and returns
	// the updated bill.
	AppendPayment(ctx context.Context, billID string, payment core.Payment) (core.Bill, error)
}

// SettingsStore persists the keyed user settings. Unset keys yield
// defaults, never errors.
type SettingsStore interface {
	GetPayConfig(ctx context.Context) (core.PayConfig, error)
	SetPayConfig(ctx context.Context, cfg core.PayConfig) error
	GetCustomCategories(ctx context.Context) ([]string, error)
	SetCustomCategories(ctx context.Context, categories []string) error
	GetSelectedCategory(ctx context.Context) (string, error)
	SetSelectedCategory(ctx context.Context, category string) error
	GetUserEmail(ctx context.Context) (string, error)
	SetUserEmail(ctx context.Context, email string) error
	GetTheme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error
}

// SyncStateStore tracks local mutations against the last completed cloud
// sync. Every successful mutation bumps the data version; a sync that
// lands records which version it carried.
type SyncStateStore interface {
	BumpDataVersion(ctx context.Context) (int64, error)
	GetSyncState(ctx context.Context) (SyncState, error)
	MarkSynced(ctx context.Context, version int64, at time.Time) error
	MarkSyncError(ctx context.Context, at time.Time, cause error) error
}

// SyncState is the cloud sync bookkeeping row.
type SyncState struct {
	DataVersion   int64
	SyncedVersion int64
	LastSyncAt    time.Time
	LastStatus    string
	LastError     string
}

// Pending reports whether local data has moved past the last sync.
func (s SyncState) Pending() bool {
	return s.DataVersion > s.SyncedVersion
}

// Sync status values recorded by MarkSynced and MarkSyncError.
const (
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// Store bundles the persistence ports behind a single backend handle.
type Store interface {
	BillStore
	SettingsStore
	SyncStateStore

	Ping(ctx context.Context) error
	Close() error
}

// Default settings values handed out for unset keys.
const (
	DefaultTheme = "light"
)
