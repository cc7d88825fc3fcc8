package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is a currency amount in cents. Amounts cross the wire as decimal
// numbers with at most two fraction digits; internally everything is int64
// cents so aggregation never touches binary floats.
type Money struct {
	Cents int64
}

// Amounts are capped at one million, which is seven integer digits.
const (
	maxAmountCents  int64 = 1_000_000 * 100
	maxAmountDigits       = 7
)

var (
	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrNegativeAmount  = fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	ErrAmountTooLarge  = fmt.Errorf("%w: amount exceeds 1000000", ErrValidation)
	ErrAmountPrecision = fmt.Errorf("%w: amount allows at most two decimal places", ErrValidation)
)

// ParseAmount converts a decimal string such as "42", "42.5" or "42.50"
// into Money. Signs, more than two fraction digits, and values above the
// maximum are rejected. Zero is a legal amount.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if s[0] == '-' {
		return Money{}, fmt.Errorf("%w: %q", ErrNegativeAmount, s)
	}
	if s[0] == '+' {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" || !allDigits(intPart) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(intPart) > maxAmountDigits {
		return Money{}, fmt.Errorf("%w: %q", ErrAmountTooLarge, s)
	}
	whole, _ := strconv.ParseInt(intPart, 10, 64)

	var frac int64
	if hasFrac {
		if fracPart == "" || !allDigits(fracPart) {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		if len(fracPart) > 2 {
			return Money{}, fmt.Errorf("%w: %q", ErrAmountPrecision, s)
		}
		frac, _ = strconv.ParseInt(fracPart, 10, 64)
		if len(fracPart) == 1 {
			frac *= 10
		}
	}

	cents := whole*100 + frac
	if cents > maxAmountCents {
		return Money{}, fmt.Errorf("%w: %q", ErrAmountTooLarge, s)
	}
	return Money{Cents: cents}, nil
}

// String formats the amount as a plain decimal with two fraction digits.
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// SubFloor returns m minus o, floored at zero.
func (m Money) SubFloor(o Money) Money {
	c := m.Cents - o.Cents
	if c < 0 {
		c = 0
	}
	return Money{Cents: c}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	if m.Cents > maxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string; older
// exports used both.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
