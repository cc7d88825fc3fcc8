// Package sqlite provides the file-backed storage backend on the pure Go
// sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/storage"

	_ "modernc.org/sqlite"
)

// Store persists bills, settings and sync state in one sqlite file.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Settings table keys.
const (
	keyPayConfig        = "payConfig"
	keyCustomCategories = "customCategories"
	keySelectedCategory = "selectedCategory"
	keyUserEmail        = "userEmail"
	keyTheme            = "theme"
)

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

const billColumns = `id, name, category, due_date, amount_due_cents, balance_cents,
	recurrence, notes, website, is_paid, last_payment_date, payment_history`

const insertBillSQL = `INSERT INTO bills (` + billColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) CreateBill(ctx context.Context, bill core.Bill) error {
	args, err := billArgs(bill)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertBillSQL, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: bill %s already exists", core.ErrValidation, bill.ID)
		}
		return storeErr("create bill", err)
	}
	return nil
}

func (s *Store) GetBill(ctx context.Context, id string) (core.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("%w: bill %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Bill{}, storeErr("get bill", err)
	}
	return bill, nil
}

func (s *Store) UpdateBill(ctx context.Context, bill core.Bill) error {
	args, err := billArgs(bill)
	if err != nil {
		return err
	}
	// billArgs puts the id first; the UPDATE wants it last.
	args = append(args[1:], bill.ID)
	res, err := s.db.ExecContext(ctx, `UPDATE bills SET
		name = ?, category = ?, due_date = ?, amount_due_cents = ?, balance_cents = ?,
		recurrence = ?, notes = ?, website = ?, is_paid = ?, last_payment_date = ?,
		payment_history = ?
		WHERE id = ?`, args...)
	if err != nil {
		return storeErr("update bill", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update bill", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: bill %s", core.ErrNotFound, bill.ID)
	}
	return nil
}

func (s *Store) DeleteBill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete bill", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete bill", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: bill %s", core.ErrNotFound, id)
	}
	return nil
}

func (s *Store) ListBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+billColumns+` FROM bills ORDER BY due_date, id`)
	if err != nil {
		return nil, storeErr("list bills", err)
	}
	defer rows.Close()

	var bills []core.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, storeErr("list bills", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list bills", err)
	}
	return bills, nil
}

func (s *Store) ReplaceAllBills(ctx context.Context, bills []core.Bill) error {
	seen := make(map[string]struct{}, len(bills))
	for _, bill := range bills {
		if _, ok := seen[bill.ID]; ok {
			return fmt.Errorf("%w: duplicate bill id %s", core.ErrValidation, bill.ID)
		}
		seen[bill.ID] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("replace bills", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bills`); err != nil {
		return storeErr("replace bills", err)
	}
	for _, bill := range bills {
		args, err := billArgs(bill)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertBillSQL, args...); err != nil {
			return storeErr("replace bills", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("replace bills", err)
	}
	return nil
}

func (s *Store) AppendPayment(ctx context.Context, billID string, payment core.Payment) (core.Bill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Bill{}, storeErr("append payment", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, billID)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("%w: bill %s", core.ErrNotFound, billID)
	}
	if err != nil {
		return core.Bill{}, storeErr("append payment", err)
	}

	bill.PaymentHistory = append(bill.PaymentHistory, payment)
	history, err := marshalHistory(bill.PaymentHistory)
	if err != nil {
		return core.Bill{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bills SET payment_history = ? WHERE id = ?`, history, billID); err != nil {
		return core.Bill{}, storeErr("append payment", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Bill{}, storeErr("append payment", err)
	}
	return bill, nil
}

func (s *Store) GetPayConfig(ctx context.Context) (core.PayConfig, error) {
	raw, ok, err := s.getSetting(ctx, keyPayConfig)
	if err != nil {
		return core.PayConfig{}, err
	}
	if !ok {
		return core.DefaultPayConfig(core.Today()), nil
	}
	var cfg core.PayConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return core.PayConfig{}, fmt.Errorf("decode pay config: %w", err)
	}
	return cfg, nil
}

func (s *Store) SetPayConfig(ctx context.Context, cfg core.PayConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode pay config: %w", err)
	}
	return s.setSetting(ctx, keyPayConfig, string(raw))
}

func (s *Store) GetCustomCategories(ctx context.Context) ([]string, error) {
	raw, ok, err := s.getSetting(ctx, keyCustomCategories)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var categories []string
	if err := json.Unmarshal([]byte(raw), &categories); err != nil {
		return nil, fmt.Errorf("decode custom categories: %w", err)
	}
	return categories, nil
}

func (s *Store) SetCustomCategories(ctx context.Context, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode custom categories: %w", err)
	}
	return s.setSetting(ctx, keyCustomCategories, string(raw))
}

func (s *Store) GetSelectedCategory(ctx context.Context) (string, error) {
	raw, _, err := s.getSetting(ctx, keySelectedCategory)
	return raw, err
}

func (s *Store) SetSelectedCategory(ctx context.Context, category string) error {
	return s.setSetting(ctx, keySelectedCategory, category)
}

func (s *Store) GetUserEmail(ctx context.Context) (string, error) {
	raw, _, err := s.getSetting(ctx, keyUserEmail)
	return raw, err
}

func (s *Store) SetUserEmail(ctx context.Context, email string) error {
	return s.setSetting(ctx, keyUserEmail, email)
}

func (s *Store) GetTheme(ctx context.Context) (string, error) {
	raw, ok, err := s.getSetting(ctx, keyTheme)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return storage.DefaultTheme, nil
	}
	return raw, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.setSetting(ctx, keyTheme, theme)
}

func (s *Store) BumpDataVersion(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("bump data version", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE sync_state SET data_version = data_version + 1 WHERE id = 1`); err != nil {
		return 0, storeErr("bump data version", err)
	}
	var version int64
	if err := tx.QueryRowContext(ctx, `SELECT data_version FROM sync_state WHERE id = 1`).Scan(&version); err != nil {
		return 0, storeErr("bump data version", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("bump data version", err)
	}
	return version, nil
}

func (s *Store) GetSyncState(ctx context.Context) (storage.SyncState, error) {
	var (
		state  storage.SyncState
		syncAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data_version, synced_version, last_sync_at, last_status, last_error FROM sync_state WHERE id = 1`).
		Scan(&state.DataVersion, &state.SyncedVersion, &syncAt, &state.LastStatus, &state.LastError)
	if err != nil {
		return storage.SyncState{}, storeErr("get sync state", err)
	}
	if syncAt != "" {
		at, err := time.Parse(time.RFC3339Nano, syncAt)
		if err != nil {
			return storage.SyncState{}, fmt.Errorf("decode last sync time: %w", err)
		}
		state.LastSyncAt = at
	}
	return state, nil
}

func (s *Store) MarkSynced(ctx context.Context, version int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_state SET synced_version = MAX(synced_version, ?), last_sync_at = ?, last_status = ?, last_error = '' WHERE id = 1`,
		version, at.Format(time.RFC3339Nano), storage.SyncStatusOK)
	if err != nil {
		return storeErr("mark synced", err)
	}
	return nil
}

func (s *Store) MarkSyncError(ctx context.Context, at time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_state SET last_sync_at = ?, last_status = ?, last_error = ? WHERE id = 1`,
		at.Format(time.RFC3339Nano), storage.SyncStatusError, msg)
	if err != nil {
		return storeErr("mark sync error", err)
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get setting "+key, err)
	}
	return value, true, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return storeErr("set setting "+key, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (core.Bill, error) {
	var (
		bill         core.Bill
		due          string
		amountCents  int64
		balanceCents int64
		recurrence   string
		isPaid       int64
		lastPayment  sql.NullString
		history      []byte
	)
	err := row.Scan(&bill.ID, &bill.Name, &bill.Category, &due, &amountCents, &balanceCents,
		&recurrence, &bill.Notes, &bill.Website, &isPaid, &lastPayment, &history)
	if err != nil {
		return core.Bill{}, err
	}

	date, err := core.ParseCivil(due)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s due date: %w", bill.ID, err)
	}
	bill.DueDate = date

	kind, err := core.ParseRecurrenceKind(recurrence)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: %w", bill.ID, err)
	}
	bill.Recurrence = core.Recurrence{Kind: kind}

	bill.AmountDue = core.Money{Cents: amountCents}
	bill.Balance = core.Money{Cents: balanceCents}
	bill.IsPaid = isPaid != 0

	if lastPayment.Valid && lastPayment.String != "" {
		d, err := core.ParseCivil(lastPayment.String)
		if err != nil {
			return core.Bill{}, fmt.Errorf("bill %s last payment date: %w", bill.ID, err)
		}
		bill.LastPaymentDate = &d
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &bill.PaymentHistory); err != nil {
			return core.Bill{}, fmt.Errorf("bill %s payment history: %w", bill.ID, err)
		}
	}
	if bill.PaymentHistory == nil {
		bill.PaymentHistory = []core.Payment{}
	}
	return bill, nil
}

func billArgs(bill core.Bill) ([]any, error) {
	history, err := marshalHistory(bill.PaymentHistory)
	if err != nil {
		return nil, err
	}
	var lastPayment any
	if bill.LastPaymentDate != nil {
		lastPayment = bill.LastPaymentDate.String()
	}
	return []any{
		bill.ID, bill.Name, bill.Category, bill.DueDate.String(),
		bill.AmountDue.Cents, bill.Balance.Cents, string(bill.Recurrence.Kind),
		bill.Notes, bill.Website, boolToInt(bill.IsPaid), lastPayment, history,
	}, nil
}

func marshalHistory(payments []core.Payment) (string, error) {
	if payments == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(payments)
	if err != nil {
		return "", fmt.Errorf("encode payment history: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStorageUnavailable, op, err)
}
