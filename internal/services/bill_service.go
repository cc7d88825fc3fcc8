// Package services orchestrates bill mutations across storage, the
// recurrence engine, and the sync trigger.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/schedule"
	"billtrack/internal/storage"
)

// ChangeListener is notified after every successful data mutation. The
// state coordinator implements it: reproject the view and arm the
// debounced cloud sync.
type ChangeListener interface {
	OnDataChanged(ctx context.Context)
}

// BillInput carries the user-editable fields of a bill. A nil Balance
// defaults to AmountDue.
type BillInput struct {
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	DueDate    core.CivilDate `json:"dueDate"`
	AmountDue  core.Money     `json:"amountDue"`
	Balance    *core.Money    `json:"balance"`
	Recurrence string         `json:"recurrence"`
	Notes      string         `json:"notes"`
	Website    string         `json:"website"`
}

// PaymentInput carries one payment to record against a bill.
type PaymentInput struct {
	Date               core.CivilDate `json:"date"`
	Amount             core.Money     `json:"amount"`
	Method             string         `json:"method"`
	ConfirmationNumber string         `json:"confirmationNumber"`
	Notes              string         `json:"notes"`
}

// BillService owns every bill mutation: validation, the schedule-aware
// due-date snap, the expansion sweep after template changes, payment
// transitions, and the data-version bump that drives cloud sync.
type BillService struct {
	store    storage.Store
	expander *schedule.Expander
	listener ChangeListener
	logger   *log.Logger

	// Injectable for tests.
	Today func() core.CivilDate
	NewID func() string
}

func NewBillService(store storage.Store, expander *schedule.Expander, logger *log.Logger) *BillService {
	return &BillService{
		store:    store,
		expander: expander,
		logger:   logger,
		Today:    core.Today,
		NewID:    uuid.NewString,
	}
}

// SetListener wires the mutation hook. Wiring happens after construction
// because the coordinator needs the sync scheduler first.
func (s *BillService) SetListener(l ChangeListener) {
	s.listener = l
}

func (s *BillService) ListBills(ctx context.Context) ([]core.Bill, error) {
	return s.store.ListBills(ctx)
}

func (s *BillService) GetBill(ctx context.Context, id string) (core.Bill, error) {
	return s.store.GetBill(ctx, id)
}

// AddBill validates and persists a new bill, then sweeps expansion so a
// recurring template materializes its per-period instances immediately.
func (s *BillService) AddBill(ctx context.Context, in BillInput) (core.Bill, error) {
	bill, err := s.billFromInput(in)
	if err != nil {
		return core.Bill{}, err
	}
	s.snapDueDate(ctx, &bill)
	if err := bill.Validate(); err != nil {
		return core.Bill{}, err
	}
	if err := s.store.CreateBill(ctx, bill); err != nil {
		return core.Bill{}, err
	}

	s.logger.InfoContext(ctx, "Bill created",
		log.FieldBillID, bill.ID,
		log.FieldBillName, bill.Name,
		log.FieldCategory, bill.Category,
		log.FieldDueDate, bill.DueDate.String())

	s.sweepExpansion(ctx)
	s.dataChanged(ctx, log.OpCreate)
	return bill, nil
}

// UpdateBill applies the editable fields onto an existing bill. Identity,
// paid state and payment history stay; the due date snaps only when it
// actually changed.
func (s *BillService) UpdateBill(ctx context.Context, id string, in BillInput) (core.Bill, error) {
	bill, err := s.store.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}

	kind, err := core.ParseRecurrenceKind(in.Recurrence)
	if err != nil {
		return core.Bill{}, err
	}

	snapNeeded := in.DueDate != bill.DueDate
	bill.Name = strings.TrimSpace(in.Name)
	bill.Category = strings.TrimSpace(in.Category)
	bill.DueDate = in.DueDate
	bill.AmountDue = in.AmountDue
	bill.Recurrence = core.Recurrence{Kind: kind}
	bill.Notes = strings.TrimSpace(in.Notes)
	bill.Website = strings.TrimSpace(in.Website)
	if in.Balance != nil {
		bill.Balance = *in.Balance
	}
	if snapNeeded {
		s.snapDueDate(ctx, &bill)
	}

	if err := bill.Validate(); err != nil {
		return core.Bill{}, err
	}
	if err := s.store.UpdateBill(ctx, bill); err != nil {
		return core.Bill{}, err
	}

	s.sweepExpansion(ctx)
	s.dataChanged(ctx, log.OpUpdate)
	return bill, nil
}

func (s *BillService) DeleteBill(ctx context.Context, id string) error {
	if err := s.store.DeleteBill(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Bill deleted", log.FieldBillID, id)
	s.dataChanged(ctx, log.OpDelete)
	return nil
}

// RecordPayment appends the payment to the bill's history, decrements the
// balance saturating at zero, and rolls the due date forward when the
// payment flips a recurring bill from unpaid to paid.
func (s *BillService) RecordPayment(ctx context.Context, billID string, in PaymentInput) (core.Bill, error) {
	if in.Amount.Cents <= 0 {
		return core.Bill{}, fmt.Errorf("%w: payment amount must be positive", core.ErrValidation)
	}
	payment := core.Payment{
		ID:                 s.NewID(),
		Date:               in.Date,
		Amount:             in.Amount,
		Method:             strings.TrimSpace(in.Method),
		ConfirmationNumber: strings.TrimSpace(in.ConfirmationNumber),
		Notes:              strings.TrimSpace(in.Notes),
	}
	if err := payment.Validate(); err != nil {
		return core.Bill{}, err
	}

	bill, err := s.store.AppendPayment(ctx, billID, payment)
	if err != nil {
		return core.Bill{}, err
	}

	wasPaid := bill.IsPaid
	bill.Balance = bill.Balance.SubFloor(payment.Amount)
	paidOn := payment.Date
	bill.LastPaymentDate = &paidOn
	if bill.Balance.IsZero() && !wasPaid {
		bill.IsPaid = true
		bill = schedule.RollForward(bill)
	}

	if err := s.store.UpdateBill(ctx, bill); err != nil {
		return core.Bill{}, err
	}

	s.logger.InfoContext(ctx, "Payment recorded",
		log.FieldBillID, bill.ID,
		log.FieldAmountCents, payment.Amount.Cents,
		log.FieldOperation, log.OpPay)

	s.dataChanged(ctx, log.OpPay)
	return bill, nil
}

// TogglePaid flips the paid state. Paying appends an auto-payment for the
// remaining amount with the reserved quick-toggle method, zeroes the
// balance and rolls recurring due dates forward. Unpaying restores the
// balance to the full amount due; history is never rewound.
func (s *BillService) TogglePaid(ctx context.Context, billID string) (core.Bill, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return core.Bill{}, err
	}

	if bill.IsPaid {
		bill.IsPaid = false
		bill.Balance = bill.AmountDue
		if err := s.store.UpdateBill(ctx, bill); err != nil {
			return core.Bill{}, err
		}
		s.dataChanged(ctx, log.OpToggle)
		return bill, nil
	}

	today := s.Today()
	if remaining := bill.Remaining(); remaining.Cents > 0 {
		payment := core.Payment{
			ID:     s.NewID(),
			Date:   today,
			Amount: remaining,
			Method: core.PaymentMethodQuickToggle,
		}
		bill, err = s.store.AppendPayment(ctx, billID, payment)
		if err != nil {
			return core.Bill{}, err
		}
	}

	bill.Balance = core.Money{}
	bill.IsPaid = true
	paidOn := today
	bill.LastPaymentDate = &paidOn
	bill = schedule.RollForward(bill)

	if err := s.store.UpdateBill(ctx, bill); err != nil {
		return core.Bill{}, err
	}

	s.dataChanged(ctx, log.OpToggle)
	return bill, nil
}

// UpdateBalance sets the current remaining obligation without touching the
// paid flag; the explicit toggle owns that transition.
func (s *BillService) UpdateBalance(ctx context.Context, billID string, balance core.Money) (core.Bill, error) {
	if err := balance.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("balance: %w", err)
	}
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return core.Bill{}, err
	}
	bill.Balance = balance
	if err := s.store.UpdateBill(ctx, bill); err != nil {
		return core.Bill{}, err
	}
	s.dataChanged(ctx, log.OpUpdate)
	return bill, nil
}

// ReplaceAll swaps the whole stored set, used by import and cloud pull.
func (s *BillService) ReplaceAll(ctx context.Context, bills []core.Bill) error {
	for _, b := range bills {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bill %q: %w", b.Name, err)
		}
	}
	if err := s.store.ReplaceAllBills(ctx, bills); err != nil {
		return err
	}
	s.dataChanged(ctx, log.OpImport)
	return nil
}

// Regenerate rebuilds the recurring instances from per-series templates
// and replaces the stored set. Returns the new collection size.
func (s *BillService) Regenerate(ctx context.Context) (int, error) {
	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return 0, err
	}
	cfg, err := s.store.GetPayConfig(ctx)
	if err != nil {
		return 0, err
	}
	out, err := s.expander.Regenerate(bills, cfg, s.Today())
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceAllBills(ctx, out); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "Regenerated recurring bills",
		log.FieldCount, len(out),
		log.FieldOperation, log.OpRegenerate)
	s.dataChanged(ctx, log.OpRegenerate)
	return len(out), nil
}

// ExpandNow runs one expansion sweep and persists the new instances,
// returning how many were minted. The worker's daily job calls this.
func (s *BillService) ExpandNow(ctx context.Context) (int, error) {
	minted, err := s.expand(ctx)
	if err != nil {
		return 0, err
	}
	if minted > 0 {
		s.dataChanged(ctx, log.OpExpand)
	}
	return minted, nil
}

// SetPayConfig validates and stores the pay schedule, then sweeps
// expansion against the new boundaries.
func (s *BillService) SetPayConfig(ctx context.Context, cfg core.PayConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.SetPayConfig(ctx, cfg); err != nil {
		return err
	}
	s.sweepExpansion(ctx)
	s.dataChanged(ctx, log.OpUpdate)
	return nil
}

func (s *BillService) GetPayConfig(ctx context.Context) (core.PayConfig, error) {
	return s.store.GetPayConfig(ctx)
}

// SetCustomCategories replaces the category list without touching bills.
func (s *BillService) SetCustomCategories(ctx context.Context, categories []string) error {
	cleaned := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cleaned = append(cleaned, c)
	}
	if err := s.store.SetCustomCategories(ctx, cleaned); err != nil {
		return err
	}
	s.dataChanged(ctx, log.OpUpdate)
	return nil
}

func (s *BillService) GetCustomCategories(ctx context.Context) ([]string, error) {
	return s.store.GetCustomCategories(ctx)
}

// DeleteCategory removes a custom category and cascades to its bills.
func (s *BillService) DeleteCategory(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty category", core.ErrValidation)
	}

	categories, err := s.store.GetCustomCategories(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]string, 0, len(categories))
	for _, c := range categories {
		if c != name {
			kept = append(kept, c)
		}
	}
	if err := s.store.SetCustomCategories(ctx, kept); err != nil {
		return 0, err
	}

	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, b := range bills {
		if b.Category != name {
			continue
		}
		if err := s.store.DeleteBill(ctx, b.ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldCategory, name,
		log.FieldCount, deleted)
	s.dataChanged(ctx, log.OpDelete)
	return deleted, nil
}

func (s *BillService) billFromInput(in BillInput) (core.Bill, error) {
	kind, err := core.ParseRecurrenceKind(in.Recurrence)
	if err != nil {
		return core.Bill{}, err
	}
	balance := in.AmountDue
	if in.Balance != nil {
		balance = *in.Balance
	}
	return core.Bill{
		ID:             s.NewID(),
		Name:           strings.TrimSpace(in.Name),
		Category:       strings.TrimSpace(in.Category),
		DueDate:        in.DueDate,
		AmountDue:      in.AmountDue,
		Balance:        balance,
		Recurrence:     core.Recurrence{Kind: kind},
		Notes:          strings.TrimSpace(in.Notes),
		Website:        strings.TrimSpace(in.Website),
		PaymentHistory: []core.Payment{},
	}, nil
}

// snapDueDate clamps a user-entered due date into the planning range. A
// misconfigured schedule skips the snap; the bill still persists and the
// coordinator surfaces the config error separately.
func (s *BillService) snapDueDate(ctx context.Context, bill *core.Bill) {
	cfg, err := s.store.GetPayConfig(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Skipping due-date snap", log.FieldError, err)
		return
	}
	periods, err := schedule.Boundaries(cfg)
	if err != nil {
		s.logger.DebugContext(ctx, "Skipping due-date snap", log.FieldError, err)
		return
	}
	bill.DueDate = schedule.Snap(bill.DueDate, periods)
}

// sweepExpansion materializes missing recurring instances after a
// template-affecting change. Failures are logged, never fatal: the
// triggering mutation already landed.
func (s *BillService) sweepExpansion(ctx context.Context) {
	minted, err := s.expand(ctx)
	if err != nil {
		if errors.Is(err, core.ErrMisconfiguredSchedule) {
			s.logger.DebugContext(ctx, "Skipping expansion sweep", log.FieldError, err)
		} else {
			s.logger.WarnContext(ctx, "Expansion sweep failed", log.FieldError, err)
		}
		return
	}
	if minted > 0 {
		s.logger.InfoContext(ctx, "Expanded recurring bills",
			log.FieldCount, minted,
			log.FieldOperation, log.OpExpand)
	}
}

func (s *BillService) expand(ctx context.Context) (int, error) {
	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return 0, err
	}
	cfg, err := s.store.GetPayConfig(ctx)
	if err != nil {
		return 0, err
	}
	minted, err := s.expander.Expand(bills, cfg)
	if err != nil {
		return 0, err
	}
	for _, b := range minted {
		if err := s.store.CreateBill(ctx, b); err != nil {
			return 0, fmt.Errorf("persist expanded instance %q: %w", b.Name, err)
		}
	}
	return len(minted), nil
}

// dataChanged bumps the sync version and notifies the listener. Every
// successful mutation funnels through here.
func (s *BillService) dataChanged(ctx context.Context, op string) {
	if _, err := s.store.BumpDataVersion(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to bump data version",
			log.FieldOperation, op, log.FieldError, err)
	}
	if s.listener != nil {
		s.listener.OnDataChanged(ctx)
	}
}
