package core

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Period is the reporting granularity.
type Period string

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod falls back to Monthly for empty input.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return Monthly, nil
	case Weekly, Monthly, Yearly:
		return Period(s), nil
	default:
		return "", NewValidationError("period", s, ErrInvalidPeriod)
	}
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) StartDate() string { return r.Start.Format(dateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(dateLayout) }

// Days returns the number of days covered, both ends included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether a YYYY-MM-DD date falls inside the range.
// Unparseable dates are outside every range.
func (r DateRange) Contains(date string) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.StartDate() + " - " + r.EndDate()
}

// ParseDate reads the leading YYYY-MM-DD part of a date or timestamp.
func ParseDate(s string) (time.Time, error) {
	if len(s) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("parse date %q: too short", s)
	}
	return time.Parse(dateLayout, s[:len(dateLayout)])
}

// RangeFor returns the range of the period offset periods away from now.
// Offset 0 is the current period, -1 the previous one.
func RangeFor(p Period, offset int, now time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case Weekly:
		weekday := int(today.Weekday())
		toMonday := 1 - weekday
		if weekday == 0 {
			toMonday = -6
		}
		monday := today.AddDate(0, 0, toMonday+offset*7)
		return DateRange{Start: monday, End: monday.AddDate(0, 0, 6)}
	case Yearly:
		y := today.Year() + offset
		return DateRange{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}
	default:
		return MonthKeyOf(today).Offset(offset).Range()
	}
}

// PreviousRange is the period immediately before the one at offset.
func PreviousRange(p Period, offset int, now time.Time) DateRange {
	return RangeFor(p, offset-1, now)
}

// PeriodLabel renders a human label such as "This Month" or "March 2025".
func PeriodLabel(p Period, offset int, now time.Time) string {
	switch offset {
	case 0:
		switch p {
		case Weekly:
			return "This Week"
		case Yearly:
			return "This Year"
		default:
			return "This Month"
		}
	case -1:
		switch p {
		case Weekly:
			return "Last Week"
		case Yearly:
			return "Last Year"
		default:
			return "Last Month"
		}
	}
	r := RangeFor(p, offset, now)
	switch p {
	case Weekly:
		return "Week of " + r.StartDate()
	case Yearly:
		return r.Start.Format("2006")
	default:
		return r.Start.Format("January 2006")
	}
}
