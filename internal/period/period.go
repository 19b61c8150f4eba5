package period

import (
	"errors"
	"fmt"
	"time"
)

// Period is a symbolic plan duration from the fixed catalog.
type Period string

const (
	Day3   Period = "day3"
	Month1 Period = "month1"
	Month3 Period = "month3"
	Month6 Period = "month6"
	Year1  Period = "year1"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Billing-day boundaries are anchored to Moscow time regardless of the
// server locale.
var moscow *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	moscow = loc
}

// Location returns the reference timezone all expiry math is anchored to.
func Location() *time.Location {
	return moscow
}

func Parse(s string) (Period, error) {
	switch Period(s) {
	case Day3, Month1, Month3, Month6, Year1:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Shift adds the period's calendar duration to t. Month and year shifts
// follow calendar semantics: a day that does not exist in the target month
// resolves to the last valid day of that month.
func (p Period) Shift(t time.Time) (time.Time, error) {
	switch p {
	case Day3:
		return t.AddDate(0, 0, 3), nil
	case Month1:
		return addMonths(t, 1), nil
	case Month3:
		return addMonths(t, 3), nil
	case Month6:
		return addMonths(t, 6), nil
	case Year1:
		return addMonths(t, 12), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
}

// ComputeExpiry returns the expiry timestamp in milliseconds for a
// subscription starting at now.
func ComputeExpiry(now time.Time, p Period) (int64, error) {
	shifted, err := p.Shift(now.In(moscow))
	if err != nil {
		return 0, err
	}
	return shifted.UnixMilli(), nil
}

// ExtendExpiry computes the new expiry for a renewal. An already-expired
// subscription restarts from now instead of stacking onto a past date.
func ExtendExpiry(prevExpiryMs int64, now time.Time, p Period) (int64, error) {
	base := time.UnixMilli(prevExpiryMs).In(moscow)
	if !base.After(now) {
		base = now.In(moscow)
	}
	shifted, err := p.Shift(base)
	if err != nil {
		return 0, err
	}
	return shifted.UnixMilli(), nil
}

// addMonths shifts t by the given number of months, clamping the day of
// month instead of normalizing (time.AddDate would roll Jan 31 over into
// March).
func addMonths(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
