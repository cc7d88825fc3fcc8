package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/storage"
)

const (
	// EnvelopeVersion is the only export format this build reads or writes.
	EnvelopeVersion = "1.0"

	// MaxImportBytes caps import payloads at 5 MiB.
	MaxImportBytes = 5 << 20
)

// ErrImportTooLarge distinguishes the oversize rejection so the HTTP layer
// can answer 413 instead of a generic 400.
var ErrImportTooLarge = fmt.Errorf("%w: payload exceeds 5 MiB", core.ErrImportFailure)

// ExportEnvelope is the portable backup format. The cloud sync pushes the
// same envelope as the per-user snapshot payload.
type ExportEnvelope struct {
	ExportDate       time.Time      `json:"exportDate"`
	Version          string         `json:"version"`
	Bills            []core.Bill    `json:"bills"`
	CustomCategories []string       `json:"customCategories"`
	PaymentSettings  core.PayConfig `json:"paymentSettings"`
}

// ImportSummary reports what an import did. Skipped only moves on the CSV
// path; the JSON path is all-or-nothing.
type ImportSummary struct {
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Categories int `json:"categories"`
}

// TransferService implements JSON export/import and the legacy CSV bulk
// import that replaces the old spreadsheet converter script.
type TransferService struct {
	store    storage.Store
	listener ChangeListener
	logger   *log.Logger

	// Injectable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewTransferService(store storage.Store, logger *log.Logger) *TransferService {
	return &TransferService{
		store:  store,
		logger: logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (s *TransferService) SetListener(l ChangeListener) {
	s.listener = l
}

// Export assembles the full backup envelope from the store.
func (s *TransferService) Export(ctx context.Context) (ExportEnvelope, error) {
	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return ExportEnvelope{}, err
	}
	categories, err := s.store.GetCustomCategories(ctx)
	if err != nil {
		return ExportEnvelope{}, err
	}
	cfg, err := s.store.GetPayConfig(ctx)
	if err != nil {
		return ExportEnvelope{}, err
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	if categories == nil {
		categories = []string{}
	}
	return ExportEnvelope{
		ExportDate:       s.Now().UTC(),
		Version:          EnvelopeVersion,
		Bills:            bills,
		CustomCategories: categories,
		PaymentSettings:  cfg,
	}, nil
}

// ExportJSON marshals the envelope for download and for cloud snapshots.
func (s *TransferService) ExportJSON(ctx context.Context) ([]byte, error) {
	env, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Raw envelope shapes tolerate the field looseness of old exports: dates
// stay strings so a bad one can be reported against its record instead of
// failing the whole decode anonymously, and pointers distinguish absent
// from zero.
type rawEnvelope struct {
	Version          string          `json:"version"`
	Bills            []rawBill       `json:"bills"`
	CustomCategories []string        `json:"customCategories"`
	PaymentSettings  *core.PayConfig `json:"paymentSettings"`
}

type rawBill struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Category        string       `json:"category"`
	DueDate         string       `json:"dueDate"`
	AmountDue       core.Money   `json:"amountDue"`
	Balance         *core.Money  `json:"balance"`
	Recurrence      string       `json:"recurrence"`
	Notes           string       `json:"notes"`
	Website         string       `json:"website"`
	IsPaid          bool         `json:"isPaid"`
	LastPaymentDate string       `json:"lastPaymentDate"`
	PaymentHistory  []rawPayment `json:"paymentHistory"`
}

type rawPayment struct {
	ID                 string     `json:"id"`
	Date               string     `json:"date"`
	Amount             core.Money `json:"amount"`
	Method             string     `json:"method"`
	ConfirmationNumber string     `json:"confirmationNumber"`
	Notes              string     `json:"notes"`
}

// ImportJSON validates and applies a backup envelope. The whole import is
// rejected on the first bad record; on success the stored bills and
// settings are replaced wholesale.
func (s *TransferService) ImportJSON(ctx context.Context, data []byte) (ImportSummary, error) {
	if len(data) > MaxImportBytes {
		return ImportSummary{}, ErrImportTooLarge
	}

	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return ImportSummary{}, fmt.Errorf("%w: malformed JSON: %v", core.ErrImportFailure, err)
	}
	if raw.Version != "" && raw.Version != EnvelopeVersion {
		return ImportSummary{}, fmt.Errorf("%w: unsupported version %q", core.ErrImportFailure, raw.Version)
	}
	if raw.Bills == nil {
		return ImportSummary{}, fmt.Errorf("%w: missing bills", core.ErrImportFailure)
	}
	if raw.PaymentSettings != nil {
		if err := raw.PaymentSettings.Validate(); err != nil {
			return ImportSummary{}, fmt.Errorf("%w: payment settings: %v", core.ErrImportFailure, err)
		}
	}

	bills := make([]core.Bill, 0, len(raw.Bills))
	for i, rb := range raw.Bills {
		bill, err := s.billFromRaw(rb)
		if err != nil {
			return ImportSummary{}, fmt.Errorf("%w: bill %d (%q): %v", core.ErrImportFailure, i+1, rb.Name, err)
		}
		bills = append(bills, bill)
	}

	categories := cleanCategories(raw.CustomCategories)

	if err := s.store.ReplaceAllBills(ctx, bills); err != nil {
		return ImportSummary{}, err
	}
	if err := s.store.SetCustomCategories(ctx, categories); err != nil {
		return ImportSummary{}, err
	}
	if raw.PaymentSettings != nil {
		if err := s.store.SetPayConfig(ctx, *raw.PaymentSettings); err != nil {
			return ImportSummary{}, err
		}
	}

	s.logger.InfoContext(ctx, "Import applied",
		log.FieldCount, len(bills),
		log.FieldOperation, log.OpImport)
	s.dataChanged(ctx)
	return ImportSummary{Imported: len(bills), Categories: len(categories)}, nil
}

func (s *TransferService) billFromRaw(rb rawBill) (core.Bill, error) {
	kind, err := core.ParseRecurrenceKind(rb.Recurrence)
	if err != nil {
		return core.Bill{}, err
	}
	due, err := core.ParseCivil(strings.TrimSpace(rb.DueDate))
	if err != nil {
		return core.Bill{}, fmt.Errorf("due date: %w", err)
	}
	id := strings.TrimSpace(rb.ID)
	if id == "" {
		id = s.NewID()
	}
	balance := rb.AmountDue
	if rb.Balance != nil {
		balance = *rb.Balance
	}

	bill := core.Bill{
		ID:             id,
		Name:           strings.TrimSpace(rb.Name),
		Category:       strings.TrimSpace(rb.Category),
		DueDate:        due,
		AmountDue:      rb.AmountDue,
		Balance:        balance,
		Recurrence:     core.Recurrence{Kind: kind},
		Notes:          rb.Notes,
		Website:        strings.TrimSpace(rb.Website),
		IsPaid:         rb.IsPaid,
		PaymentHistory: make([]core.Payment, 0, len(rb.PaymentHistory)),
	}
	if lp := strings.TrimSpace(rb.LastPaymentDate); lp != "" {
		d, err := core.ParseCivil(lp)
		if err != nil {
			return core.Bill{}, fmt.Errorf("last payment date: %w", err)
		}
		bill.LastPaymentDate = &d
	}
	for j, rp := range rb.PaymentHistory {
		p, err := s.paymentFromRaw(rp)
		if err != nil {
			return core.Bill{}, fmt.Errorf("payment %d: %w", j+1, err)
		}
		bill.PaymentHistory = append(bill.PaymentHistory, p)
	}
	if err := bill.Validate(); err != nil {
		return core.Bill{}, err
	}
	return bill, nil
}

func (s *TransferService) paymentFromRaw(rp rawPayment) (core.Payment, error) {
	date, err := core.ParseCivil(strings.TrimSpace(rp.Date))
	if err != nil {
		return core.Payment{}, fmt.Errorf("date: %w", err)
	}
	id := strings.TrimSpace(rp.ID)
	if id == "" {
		id = s.NewID()
	}
	return core.Payment{
		ID:                 id,
		Date:               date,
		Amount:             rp.Amount,
		Method:             strings.TrimSpace(rp.Method),
		ConfirmationNumber: strings.TrimSpace(rp.ConfirmationNumber),
		Notes:              rp.Notes,
	}, nil
}

// ImportCSV appends bills from the legacy spreadsheet format. Rows missing
// a name or a parseable due date are skipped and counted rather than
// failing the batch; new categories join the custom list.
func (s *TransferService) ImportCSV(ctx context.Context, data []byte) (ImportSummary, error) {
	if len(data) > MaxImportBytes {
		return ImportSummary{}, ErrImportTooLarge
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("%w: missing header row: %v", core.ErrImportFailure, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["name"]; !ok {
		return ImportSummary{}, fmt.Errorf("%w: header row must include Name and Due Date", core.ErrImportFailure)
	}
	if _, ok := cols["due date"]; !ok {
		return ImportSummary{}, fmt.Errorf("%w: header row must include Name and Due Date", core.ErrImportFailure)
	}
	field := func(row []string, key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		bills   []core.Bill
		skipped int
		seen    = map[string]bool{}
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ImportSummary{}, fmt.Errorf("%w: malformed CSV: %v", core.ErrImportFailure, err)
		}
		name := field(row, "name")
		rawDate := field(row, "due date")
		if name == "" || rawDate == "" {
			skipped++
			continue
		}
		due, ok := parseLegacyDate(rawDate)
		if !ok {
			skipped++
			continue
		}
		category := field(row, "category")
		if category == "" {
			category = "Other"
		}
		amount := parseLegacyAmount(field(row, "amount"))
		kind, err := core.ParseRecurrenceKind(field(row, "recurrence"))
		if err != nil || kind == core.Custom {
			kind = core.Monthly
		}

		bill := core.Bill{
			ID:             s.NewID(),
			Name:           name,
			Category:       category,
			DueDate:        due,
			AmountDue:      amount,
			Balance:        amount,
			Recurrence:     core.Recurrence{Kind: kind},
			Notes:          field(row, "notes"),
			PaymentHistory: []core.Payment{},
		}
		if err := bill.Validate(); err != nil {
			skipped++
			continue
		}
		bills = append(bills, bill)
		seen[category] = true
	}

	for _, b := range bills {
		if err := s.store.CreateBill(ctx, b); err != nil {
			return ImportSummary{}, err
		}
	}
	added, err := s.mergeCategories(ctx, seen)
	if err != nil {
		return ImportSummary{}, err
	}

	s.logger.InfoContext(ctx, "CSV import applied",
		log.FieldCount, len(bills),
		log.FieldSkipped, skipped,
		log.FieldOperation, log.OpImport)
	if len(bills) > 0 || added > 0 {
		s.dataChanged(ctx)
	}
	return ImportSummary{Imported: len(bills), Skipped: skipped, Categories: added}, nil
}

// mergeCategories appends categories not already in the custom list,
// sorted, and returns how many were added.
func (s *TransferService) mergeCategories(ctx context.Context, seen map[string]bool) (int, error) {
	if len(seen) == 0 {
		return 0, nil
	}
	existing, err := s.store.GetCustomCategories(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	var fresh []string
	for c := range seen {
		if !have[c] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	sort.Strings(fresh)
	if err := s.store.SetCustomCategories(ctx, append(existing, fresh...)); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func cleanCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// parseLegacyDate understands the date shapes the old spreadsheets used:
// YY-MM-DD and YYYY-MM-DD, MM/DD/YY and MM/DD/YYYY, and bare YYYYMMDD.
// Two-digit years live in the 2000s.
func parseLegacyDate(raw string) (core.CivilDate, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.Contains(raw, "-"):
		parts := strings.Split(raw, "-")
		if len(parts) != 3 {
			return core.CivilDate{}, false
		}
		year, err1 := strconv.Atoi(parts[0])
		month, err2 := strconv.Atoi(parts[1])
		day, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return core.CivilDate{}, false
		}
		if len(parts[0]) == 2 {
			year += 2000
		}
		d := core.NewCivilDate(year, month, day)
		return d, d.IsValid()
	case strings.Contains(raw, "/"):
		parts := strings.Split(raw, "/")
		if len(parts) != 3 {
			return core.CivilDate{}, false
		}
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		year, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return core.CivilDate{}, false
		}
		if len(parts[2]) == 2 {
			year += 2000
		}
		d := core.NewCivilDate(year, month, day)
		return d, d.IsValid()
	default:
		if len(raw) != 8 {
			return core.CivilDate{}, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return core.CivilDate{}, false
		}
		d := core.NewCivilDate(n/10000, (n/100)%100, n%100)
		return d, d.IsValid()
	}
}

// parseLegacyAmount strips currency noise and falls back to zero, the way
// the old converter did.
func parseLegacyAmount(raw string) core.Money {
	raw = strings.ReplaceAll(raw, "$", "")
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.Money{}
	}
	m, err := core.ParseAmount(raw)
	if err != nil {
		return core.Money{}
	}
	return m
}

func (s *TransferService) dataChanged(ctx context.Context) {
	if _, err := s.store.BumpDataVersion(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to bump data version",
			log.FieldOperation, log.OpImport, log.FieldError, err)
	}
	if s.listener != nil {
		s.listener.OnDataChanged(ctx)
	}
}
