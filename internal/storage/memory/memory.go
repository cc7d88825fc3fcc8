// Package memory provides the in-process storage backend. It backs
// STORAGE_BACKEND=memory and most tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/storage"
)

// Store keeps everything behind one mutex. Reads and writes exchange deep
// copies so callers never alias store state.
type Store struct {
	mu sync.Mutex

	bills map[string]core.Bill

	payConfig        *core.PayConfig
	customCategories []string
	selectedCategory string
	userEmail        string
	theme            string

	dataVersion   int64
	syncedVersion int64
	lastSyncAt    time.Time
	lastStatus    string
	lastError     string
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{bills: make(map[string]core.Bill)}
}

func (s *Store) CreateBill(_ context.Context, bill core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[bill.ID]; ok {
		return fmt.Errorf("%w: bill %s already exists", core.ErrValidation, bill.ID)
	}
	s.bills[bill.ID] = bill.Clone()
	return nil
}

func (s *Store) GetBill(_ context.Context, id string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	if !ok {
		return core.Bill{}, fmt.Errorf("%w: bill %s", core.ErrNotFound, id)
	}
	return bill.Clone(), nil
}

func (s *Store) UpdateBill(_ context.Context, bill core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[bill.ID]; !ok {
		return fmt.Errorf("%w: bill %s", core.ErrNotFound, bill.ID)
	}
	s.bills[bill.ID] = bill.Clone()
	return nil
}

func (s *Store) DeleteBill(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return fmt.Errorf("%w: bill %s", core.ErrNotFound, id)
	}
	delete(s.bills, id)
	return nil
}

func (s *Store) ListBills(_ context.Context) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		out = append(out, bill.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].DueDate.Compare(out[j].DueDate); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReplaceAllBills(_ context.Context, bills []core.Bill) error {
	next := make(map[string]core.Bill, len(bills))
	for _, bill := range bills {
		if _, ok := next[bill.ID]; ok {
			return fmt.Errorf("%w: duplicate bill id %s", core.ErrValidation, bill.ID)
		}
		next[bill.ID] = bill.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills = next
	return nil
}

func (s *Store) AppendPayment(_ context.Context, billID string, payment core.Payment) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[billID]
	if !ok {
		return core.Bill{}, fmt.Errorf("%w: bill %s", core.ErrNotFound, billID)
	}
	updated := bill.Clone()
	updated.PaymentHistory = append(updated.PaymentHistory, payment)
	s.bills[billID] = updated
	return updated.Clone(), nil
}

func (s *Store) GetPayConfig(_ context.Context) (core.PayConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payConfig == nil {
		return core.DefaultPayConfig(core.Today()), nil
	}
	return *s.payConfig, nil
}

func (s *Store) SetPayConfig(_ context.Context, cfg core.PayConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg
	s.payConfig = &c
	return nil
}

func (s *Store) GetCustomCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.customCategories...), nil
}

func (s *Store) SetCustomCategories(_ context.Context, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customCategories = append([]string(nil), categories...)
	return nil
}

func (s *Store) GetSelectedCategory(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCategory, nil
}

func (s *Store) SetSelectedCategory(_ context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCategory = category
	return nil
}

func (s *Store) GetUserEmail(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userEmail, nil
}

func (s *Store) SetUserEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userEmail = email
	return nil
}

func (s *Store) GetTheme(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == "" {
		return storage.DefaultTheme, nil
	}
	return s.theme, nil
}

func (s *Store) SetTheme(_ context.Context, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return nil
}

func (s *Store) BumpDataVersion(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataVersion++
	return s.dataVersion, nil
}

func (s *Store) GetSyncState(_ context.Context) (storage.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.SyncState{
		DataVersion:   s.dataVersion,
		SyncedVersion: s.syncedVersion,
		LastSyncAt:    s.lastSyncAt,
		LastStatus:    s.lastStatus,
		LastError:     s.lastError,
	}, nil
}

func (s *Store) MarkSynced(_ context.Context, version int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.syncedVersion {
		s.syncedVersion = version
	}
	s.lastSyncAt = at
	s.lastStatus = storage.SyncStatusOK
	s.lastError = ""
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, at time.Time, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncAt = at
	s.lastStatus = storage.SyncStatusError
	if cause != nil {
		s.lastError = cause.Error()
	} else {
		s.lastError = ""
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
