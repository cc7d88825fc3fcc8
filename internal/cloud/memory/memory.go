// Package memory is an in-memory snapshot store for tests and deployments
// without a configured spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"billtrack/internal/cloud"
)

type Store struct {
	mu    sync.Mutex
	snaps map[string]cloud.Snapshot
}

var _ cloud.Store = (*Store)(nil)

func New() *Store {
	return &Store{snaps: make(map[string]cloud.Snapshot)}
}

func (s *Store) Fetch(_ context.Context, key string) (cloud.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok {
		return cloud.Snapshot{}, fmt.Errorf("%w: %s", cloud.ErrNotFound, key)
	}
	return copySnapshot(snap), nil
}

func (s *Store) Upsert(_ context.Context, snap cloud.Snapshot) error {
	if snap.Key == "" {
		return fmt.Errorf("snapshot key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Key] = copySnapshot(snap)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Len reports how many snapshots are held, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func copySnapshot(snap cloud.Snapshot) cloud.Snapshot {
	out := snap
	out.Envelope = append([]byte(nil), snap.Envelope...)
	return out
}
