// Package cloud defines the outbound port for snapshot storage: one full
// state snapshot per user key, last write wins.
package cloud

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one user's complete exported state as the cloud stores it.
// Envelope is the JSON export document; Revision is the local data version
// observed at push time.
type Snapshot struct {
	Key       string
	Envelope  []byte
	Revision  int64
	UpdatedAt time.Time
}

// Store is the snapshot medium. Fetch returns ErrNotFound when the key has
// no snapshot yet.
type Store interface {
	Fetch(ctx context.Context, key string) (Snapshot, error)
	Upsert(ctx context.Context, snap Snapshot) error
	Ping(ctx context.Context) error
}
