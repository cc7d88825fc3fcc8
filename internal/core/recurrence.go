package core

import (
	"fmt"
	"strings"
)

const (
	OneTime  RecurrenceKind = "One-time"
	Weekly   RecurrenceKind = "Weekly"
	BiWeekly RecurrenceKind = "Bi-weekly"
	Monthly  RecurrenceKind = "Monthly"
	Yearly   RecurrenceKind = "Yearly"
	Custom   RecurrenceKind = "Custom"
)

type (
	// RecurrenceKind names how often a bill repeats.
	RecurrenceKind string

	// Recurrence is the tagged repeat interval: a kind plus the day count
	// used when the kind is Custom. Bills carry the five named kinds;
	// Custom exists for schedule math that steps by an arbitrary interval.
	Recurrence struct {
		Kind       RecurrenceKind
		CustomDays int
	}
)

var ErrInvalidRecurrence = fmt.Errorf("%w: invalid recurrence", ErrValidation)

// ParseRecurrenceKind normalizes a recurrence name case-insensitively.
// Legacy exports wrote variants like "monthly", "Bi-Weekly" and "biweekly";
// they all map onto the canonical kinds.
func ParseRecurrenceKind(s string) (RecurrenceKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, " ", "")
	switch key {
	case "onetime":
		return OneTime, nil
	case "weekly":
		return Weekly, nil
	case "biweekly":
		return BiWeekly, nil
	case "monthly":
		return Monthly, nil
	case "yearly":
		return Yearly, nil
	case "custom":
		return Custom, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRecurrence, s)
}

// IsRecurring reports whether the recurrence repeats at all.
func (r Recurrence) IsRecurring() bool {
	return r.Kind != "" && r.Kind != OneTime
}

func (r Recurrence) Validate() error {
	switch r.Kind {
	case OneTime, Weekly, BiWeekly, Monthly, Yearly:
		return nil
	case Custom:
		if r.CustomDays < 1 || r.CustomDays > 365 {
			return fmt.Errorf("%w: custom interval must be 1-365 days, got %d", ErrInvalidRecurrence, r.CustomDays)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecurrence, r.Kind)
}

// Advance returns the due date one recurrence step after d: +7 days for
// Weekly, +14 for Bi-weekly, one calendar month for Monthly (clamped per
// CivilDate.AddMonths), one calendar year for Yearly, +CustomDays for
// Custom. The bool is false for one-time bills, which have no next
// occurrence.
func (r Recurrence) Advance(d CivilDate) (CivilDate, bool) {
	switch r.Kind {
	case Weekly:
		return d.AddDays(7), true
	case BiWeekly:
		return d.AddDays(14), true
	case Monthly:
		return d.AddMonths(1), true
	case Yearly:
		return d.AddYears(1), true
	case Custom:
		return d.AddDays(r.CustomDays), true
	}
	return d, false
}

// MarshalText writes the canonical kind name. CustomDays does not travel
// with bills; bill recurrences are restricted to the named kinds.
func (r Recurrence) MarshalText() ([]byte, error) {
	return []byte(r.Kind), nil
}

func (r *Recurrence) UnmarshalText(b []byte) error {
	kind, err := ParseRecurrenceKind(string(b))
	if err != nil {
		return err
	}
	r.Kind = kind
	r.CustomDays = 0
	return nil
}
