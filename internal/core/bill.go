package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// PaymentMethodQuickToggle marks payments minted by the paid quick
	// toggle rather than entered by hand.
	PaymentMethodQuickToggle = "Quick Toggle"

	maxNameLen     = 100
	maxCategoryLen = 50
	maxNotesLen    = 500
	maxMethodLen   = 50
)

type (
	// Bill is one tracked obligation: either a one-time entry or a
	// concrete instance of a recurring template. Balance starts at
	// AmountDue and carries whatever is still owed; PaymentHistory is
	// append-only.
	Bill struct {
		ID              string     `json:"id"`
		Name            string     `json:"name"`
		Category        string     `json:"category"`
		DueDate         CivilDate  `json:"dueDate"`
		AmountDue       Money      `json:"amountDue"`
		Balance         Money      `json:"balance"`
		Recurrence      Recurrence `json:"recurrence"`
		Notes           string     `json:"notes,omitempty"`
		Website         string     `json:"website,omitempty"`
		IsPaid          bool       `json:"isPaid"`
		LastPaymentDate *CivilDate `json:"lastPaymentDate,omitempty"`
		PaymentHistory  []Payment  `json:"paymentHistory"`
	}

	// Payment is one recorded payment against a bill.
	Payment struct {
		ID                 string    `json:"id"`
		Date               CivilDate `json:"date"`
		Amount             Money     `json:"amount"`
		Method             string    `json:"method"`
		ConfirmationNumber string    `json:"confirmationNumber,omitempty"`
		Notes              string    `json:"notes,omitempty"`
	}
)

var (
	ErrMissingID     = fmt.Errorf("%w: missing id", ErrValidation)
	ErrEmptyName     = fmt.Errorf("%w: empty name", ErrValidation)
	ErrEmptyCategory = fmt.Errorf("%w: empty category", ErrValidation)
	ErrInvalidURL    = fmt.Errorf("%w: website must be an absolute http or https URL", ErrValidation)
)

func (b Bill) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w (bill)", ErrMissingID)
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if err := checkText(b.Name, maxNameLen, false); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := checkText(b.Category, maxCategoryLen, false); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if !b.DueDate.IsValid() {
		return fmt.Errorf("due date: %w", ErrInvalidDate)
	}
	if err := b.AmountDue.Validate(); err != nil {
		return fmt.Errorf("amount due: %w", err)
	}
	if err := b.Balance.Validate(); err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	if err := b.Recurrence.Validate(); err != nil {
		return err
	}
	if b.Recurrence.Kind == Custom {
		return fmt.Errorf("%w: bills use the named kinds, not Custom", ErrInvalidRecurrence)
	}
	if err := checkText(b.Notes, maxNotesLen, true); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if b.Website != "" {
		if err := validateWebsite(b.Website); err != nil {
			return err
		}
	}
	if b.LastPaymentDate != nil && !b.LastPaymentDate.IsValid() {
		return fmt.Errorf("last payment date: %w", ErrInvalidDate)
	}
	for i, p := range b.PaymentHistory {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("payment %d: %w", i, err)
		}
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w (payment)", ErrMissingID)
	}
	if !p.Date.IsValid() {
		return fmt.Errorf("date: %w", ErrInvalidDate)
	}
	if err := p.Amount.Validate(); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if err := checkText(p.Method, maxMethodLen, false); err != nil {
		return fmt.Errorf("method: %w", err)
	}
	if err := checkText(p.ConfirmationNumber, maxMethodLen, false); err != nil {
		return fmt.Errorf("confirmation number: %w", err)
	}
	if err := checkText(p.Notes, maxNotesLen, true); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	return nil
}

// TotalPaid sums every recorded payment.
func (b Bill) TotalPaid() Money {
	var total Money
	for _, p := range b.PaymentHistory {
		total = total.Add(p.Amount)
	}
	return total
}

// Remaining is the outstanding amount: balance minus everything paid,
// floored at zero.
func (b Bill) Remaining() Money {
	return b.Balance.SubFloor(b.TotalPaid())
}

// IsOverdue reports whether the bill is unpaid with a due date before
// today.
func (b Bill) IsOverdue(today CivilDate) bool {
	return !b.IsPaid && b.DueDate.Before(today)
}

// Clone returns a deep copy. Stores and view models hand out clones so
// callers never alias the persisted payment history.
func (b Bill) Clone() Bill {
	out := b
	if b.LastPaymentDate != nil {
		d := *b.LastPaymentDate
		out.LastPaymentDate = &d
	}
	if b.PaymentHistory != nil {
		out.PaymentHistory = append([]Payment(nil), b.PaymentHistory...)
	}
	return out
}

// CloneBills deep-copies a bill slice.
func CloneBills(bills []Bill) []Bill {
	if bills == nil {
		return nil
	}
	out := make([]Bill, len(bills))
	for i, b := range bills {
		out[i] = b.Clone()
	}
	return out
}

func validateWebsite(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
