package core

import (
	"fmt"
	"strings"
)

const (
	FrequencyWeekly   PayFrequency = "weekly"
	FrequencyBiWeekly PayFrequency = "bi-weekly"
	FrequencyMonthly  PayFrequency = "monthly"
	FrequencyCustom   PayFrequency = "custom"
)

type (
	// PayFrequency names how often paychecks arrive.
	PayFrequency string

	// PayConfig describes the user's pay schedule: the anchor paycheck
	// date, how often paychecks arrive, and how many periods to plan.
	PayConfig struct {
		StartDate        CivilDate    `json:"startDate"`
		Frequency        PayFrequency `json:"frequency"`
		CustomDays       int          `json:"customDays,omitempty"`
		PayPeriodsToShow int          `json:"payPeriodsToShow"`
	}
)

// ParsePayFrequency normalizes a frequency name case-insensitively, with
// the same hyphen/space tolerance as recurrence kinds.
func ParsePayFrequency(s string) (PayFrequency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, " ", "")
	switch key {
	case "weekly":
		return FrequencyWeekly, nil
	case "biweekly":
		return FrequencyBiWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "custom":
		return FrequencyCustom, nil
	}
	return "", fmt.Errorf("%w: unknown frequency %q", ErrMisconfiguredSchedule, s)
}

func (f PayFrequency) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

func (f *PayFrequency) UnmarshalText(b []byte) error {
	parsed, err := ParsePayFrequency(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// StrideDays returns the fixed width of one pay period in days. Monthly is
// deliberately a constant 30 days so every period has equal width; the
// Monthly recurrence advance uses calendar months instead, so
// monthly-recurring bills drift relative to monthly pay periods.
func (c PayConfig) StrideDays() (int, error) {
	switch c.Frequency {
	case FrequencyWeekly:
		return 7, nil
	case FrequencyBiWeekly:
		return 14, nil
	case FrequencyMonthly:
		return 30, nil
	case FrequencyCustom:
		if c.CustomDays < 1 || c.CustomDays > 365 {
			return 0, fmt.Errorf("%w: custom frequency needs customDays 1-365, got %d", ErrMisconfiguredSchedule, c.CustomDays)
		}
		return c.CustomDays, nil
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrMisconfiguredSchedule, c.Frequency)
}

func (c PayConfig) Validate() error {
	if !c.StartDate.IsValid() {
		return fmt.Errorf("%w: invalid start date", ErrMisconfiguredSchedule)
	}
	if _, err := c.StrideDays(); err != nil {
		return err
	}
	if c.PayPeriodsToShow < 1 || c.PayPeriodsToShow > 52 {
		return fmt.Errorf("%w: payPeriodsToShow must be 1-52, got %d", ErrMisconfiguredSchedule, c.PayPeriodsToShow)
	}
	return nil
}

// DefaultPayConfig is the schedule used before the user saves one:
// bi-weekly paychecks anchored on today, six periods ahead.
func DefaultPayConfig(today CivilDate) PayConfig {
	return PayConfig{
		StartDate:        today,
		Frequency:        FrequencyBiWeekly,
		PayPeriodsToShow: 6,
	}
}
