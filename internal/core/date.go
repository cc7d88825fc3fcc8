package core

import (
	"fmt"
	"strconv"
	"time"
)

// CivilDate is a calendar date as a plain (year, month, day) triple in the
// proleptic Gregorian calendar. It carries no time of day and no timezone;
// comparisons and arithmetic never route through UTC, so a date entered as
// 2025-01-15 stays 2025-01-15 on every machine.
type CivilDate struct {
	Year  int
	Month int
	Day   int
}

var (
	ErrInvalidDateFormat = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidDate       = fmt.Errorf("%w: no such calendar date", ErrValidation)
)

// NewCivilDate builds a date from components without validating them.
func NewCivilDate(year, month, day int) CivilDate {
	return CivilDate{Year: year, Month: month, Day: day}
}

// Today returns the current date in local civil time.
func Today() CivilDate {
	now := time.Now()
	return CivilDate{Year: now.Year(), Month: int(now.Month()), Day: now.Day()}
}

// ParseCivil parses a strict YYYY-MM-DD string. The format is fixed width:
// four digit year, two digit month, two digit day, hyphen separated. Strings
// that match the format but name no real date (2026-02-30) are rejected.
func ParseCivil(s string) (CivilDate, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return CivilDate{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	for i := 0; i < len(s); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return CivilDate{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
		}
	}
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[5:7])
	day, _ := strconv.Atoi(s[8:10])
	d := CivilDate{Year: year, Month: month, Day: day}
	if !d.IsValid() {
		return CivilDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// IsValid reports whether the components name a real calendar date.
func (d CivilDate) IsValid() bool {
	if d.Year < 1 || d.Month < 1 || d.Month > 12 {
		return false
	}
	return d.Day >= 1 && d.Day <= daysInMonth(d.Year, d.Month)
}

// IsZero reports whether d is the zero value, used for optional dates.
func (d CivilDate) IsZero() bool {
	return d == CivilDate{}
}

// String formats the date as YYYY-MM-DD.
func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Compare returns -1 if d is before o, 0 if equal, +1 if after.
func (d CivilDate) Compare(o CivilDate) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(d.Month - o.Month)
	default:
		return sign(d.Day - o.Day)
	}
}

// Before reports whether d is strictly earlier than o.
func (d CivilDate) Before(o CivilDate) bool {
	return d.Compare(o) < 0
}

// After reports whether d is strictly later than o.
func (d CivilDate) After(o CivilDate) bool {
	return d.Compare(o) > 0
}

// AddDays returns the date n days after d; n may be negative.
func (d CivilDate) AddDays(n int) CivilDate {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return CivilDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// AddMonths returns the date n calendar months after d, clamping the day to
// the last day of the target month: Jan 31 plus one month is Feb 28, or
// Feb 29 in a leap year. Clamping is per call, not cumulative.
func (d CivilDate) AddMonths(n int) CivilDate {
	months := d.Year*12 + (d.Month - 1) + n
	year := months / 12
	month := months%12 + 1
	if months < 0 && months%12 != 0 {
		year--
		month += 12
	}
	day := d.Day
	if limit := daysInMonth(year, month); day > limit {
		day = limit
	}
	return CivilDate{Year: year, Month: month, Day: day}
}

// AddYears returns the date n years after d; Feb 29 clamps to Feb 28 when
// the target year is not a leap year.
func (d CivilDate) AddYears(n int) CivilDate {
	year := d.Year + n
	day := d.Day
	if limit := daysInMonth(year, d.Month); day > limit {
		day = limit
	}
	return CivilDate{Year: year, Month: d.Month, Day: day}
}

// MonthStart returns the first day of d's month, used to anchor calendar
// views.
func (d CivilDate) MonthStart() CivilDate {
	return CivilDate{Year: d.Year, Month: d.Month, Day: 1}
}

// MarshalText implements encoding.TextMarshaler as YYYY-MM-DD.
func (d CivilDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text decodes to
// the zero date so optional fields in old exports round-trip.
func (d *CivilDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = CivilDate{}
		return nil
	}
	parsed, err := ParseCivil(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
