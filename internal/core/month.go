package core

import (
	"fmt"
	"strconv"
	"time"
)

// MonthKey identifies a calendar month, rendered as "YYYY-MM".
type MonthKey struct {
	Year  int
	Month time.Month
}

// ParseMonthKey accepts exactly "YYYY-MM".
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 || s[4] != '-' || !digits(s[:4]) || !digits(s[5:]) {
		return MonthKey{}, NewValidationError("month", s, ErrInvalidMonthKey)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1 {
		return MonthKey{}, NewValidationError("month", s, ErrInvalidMonthKey)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil || m < 1 || m > 12 {
		return MonthKey{}, NewValidationError("month", s, ErrInvalidMonthKey)
	}
	return MonthKey{Year: y, Month: time.Month(m)}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MonthKeyOf returns the month containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// Offset moves n calendar months, crossing year boundaries.
func (k MonthKey) Offset(n int) MonthKey {
	t := time.Date(k.Year, k.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return MonthKeyOf(t)
}

// Range returns the first and last day of the month.
func (k MonthKey) Range() DateRange {
	start := time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, -1)}
}

func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MonthKey) UnmarshalText(b []byte) error {
	parsed, err := ParseMonthKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
