package period

import (
	"fmt"
	"strings"
	"time"
)

// State describes how much of a subscription is left.
type State int

const (
	StateExpired State = iota
	StateLessThanHour
	StateTimeLeft
)

// Remaining is the calendar difference between now and an expiry timestamp.
type Remaining struct {
	State  State
	Years  int
	Months int
	Days   int
	Hours  int
}

// Classify computes the remaining time for an expiry timestamp (ms epoch)
// relative to now. It is a pure function of its inputs.
func Classify(expiryMs int64, now time.Time) Remaining {
	expiry := time.UnixMilli(expiryMs).In(moscow)
	now = now.In(moscow)

	if expiry.Before(now) {
		return Remaining{State: StateExpired}
	}

	years, months, days, hours := calendarDiff(now, expiry)
	if years == 0 && months == 0 && days == 0 && hours == 0 {
		return Remaining{State: StateLessThanHour}
	}
	return Remaining{State: StateTimeLeft, Years: years, Months: months, Days: days, Hours: hours}
}

// calendarDiff returns the component-wise calendar difference from a to b,
// a <= b. Months are counted by calendar position, the remainder in days
// and whole hours.
func calendarDiff(a, b time.Time) (years, months, days, hours int) {
	totalMonths := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if totalMonths > 0 && addMonths(a, totalMonths).After(b) {
		totalMonths--
	}
	rest := b.Sub(addMonths(a, totalMonths))

	years = totalMonths / 12
	months = totalMonths % 12
	days = int(rest.Hours()) / 24
	hours = int(rest.Hours()) % 24
	return years, months, days, hours
}

// String renders the remaining time as a Russian phrase, joining only the
// non-zero components in descending order of magnitude. Empty for terminal
// states.
func (r Remaining) String() string {
	if r.State != StateTimeLeft {
		return ""
	}
	var parts []string
	if r.Years > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Years, wordForm(r.Years, "год", "года", "лет")))
	}
	if r.Months > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Months, wordForm(r.Months, "месяц", "месяца", "месяцев")))
	}
	if r.Days > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Days, wordForm(r.Days, "день", "дня", "дней")))
	}
	if r.Hours > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Hours, wordForm(r.Hours, "час", "часа", "часов")))
	}
	return strings.Join(parts, ", ")
}

// wordForm picks the Russian plural form: singular for 1, the small-plural
// for 2-4, and the other form for 0, 5-20 and the teens, disambiguated by
// the last two digits.
func wordForm(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	n = n % 100
	if n > 10 && n < 20 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	}
	return many
}
