package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATES - Day precision, always UTC
// =============================================================================

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return t.Year(), t.Month(), nil
}

// DaysInclusive counts calendar days in [start, end]. Zero or negative
// when end is before start.
func DaysInclusive(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours()/24) + 1
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartOfMonth(year int, month time.Month) time.Time { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return NewDate(year, month, DaysInMonth(year, month))
}
