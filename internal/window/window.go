// Package window computes the recurring settlement window from a calendar
// date. The calculation is pure and date-only; time of day never changes
// the answer.
package window

import (
	"fmt"
	"time"
)

// Date is a calendar date. Computations operate on date granularity only.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates a wall-clock instant to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Label renders the date for display, e.g. "30th of January".
func (d Date) Label() string {
	return fmt.Sprintf("%s of %s", ordinal(d.Day), d.Month.String())
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Rule is the injectable business rule for the recurring window. The
// authoritative values drifted in the past, so they are configuration,
// not constants.
type Rule struct {
	// OpenDay is the scheduled opening day of each month.
	OpenDay int
	// CloseDay is the day of the following month on which the window
	// closes, inclusive.
	CloseDay int
}

// DefaultRule opens on the 30th and closes on the 5th of the next month.
var DefaultRule = Rule{OpenDay: 30, CloseDay: 5}

// Window is the derived state of the payment window on a given day.
// It is recomputed on every query and never persisted.
type Window struct {
	IsOpen        bool `json:"is_open"`
	OpensOn       Date `json:"opens_on"`
	ClosesOn      Date `json:"closes_on"`
	DaysUntilOpen int  `json:"days_until_open"`
}

// Calculator evaluates the window rule. It holds no mutable state.
type Calculator struct {
	rule Rule
}

// NewCalculator builds a Calculator, falling back to DefaultRule fields
// for zero values.
func NewCalculator(rule Rule) Calculator {
	if rule.OpenDay <= 0 {
		rule.OpenDay = DefaultRule.OpenDay
	}
	if rule.CloseDay <= 0 {
		rule.CloseDay = DefaultRule.CloseDay
	}
	return Calculator{rule: rule}
}

// Status reports whether settlement is accepted on the given day and when
// the surrounding window opens and closes. Invariant: DaysUntilOpen is
// zero exactly when IsOpen is true.
func (c Calculator) Status(today Date) Window {
	ts := serial(today)

	// A window opening scheduled in month M can only cover days from M
	// or the first days of M+1, so only the previous and current
	// scheduled months need checking.
	for _, sched := range []Date{prevMonth(today), {Year: today.Year, Month: today.Month}} {
		open := c.openingFor(sched.Year, sched.Month)
		closing := c.closingFor(sched.Year, sched.Month)
		if ts >= serial(open) && ts <= serial(closing) {
			return Window{IsOpen: true, OpensOn: open, ClosesOn: closing, DaysUntilOpen: 0}
		}
	}

	// Closed: report the next scheduled opening.
	schedY, schedM := today.Year, today.Month
	open := c.openingFor(schedY, schedM)
	if serial(open) <= ts {
		schedY, schedM = nextMonth(schedY, schedM)
		open = c.openingFor(schedY, schedM)
	}
	return Window{
		IsOpen:        false,
		OpensOn:       open,
		ClosesOn:      c.closingFor(schedY, schedM),
		DaysUntilOpen: serial(open) - ts,
	}
}

// openingFor resolves the actual opening date of the window scheduled in
// the given month. When the month is one day too short for OpenDay the
// window opens on the month's last day (leap-year February); when it is
// shorter still, on the 1st of the following month (non-leap February).
func (c Calculator) openingFor(year int, month time.Month) Date {
	last := daysInMonth(month, year)
	switch deficit := c.rule.OpenDay - last; {
	case deficit <= 0:
		return Date{Year: year, Month: month, Day: c.rule.OpenDay}
	case deficit == 1:
		return Date{Year: year, Month: month, Day: last}
	default:
		y, m := nextMonth(year, month)
		return Date{Year: y, Month: m, Day: 1}
	}
}

// closingFor is always CloseDay of the month after the scheduled month,
// even when the opening spilled into that month.
func (c Calculator) closingFor(year int, month time.Month) Date {
	y, m := nextMonth(year, month)
	return Date{Year: y, Month: m, Day: c.rule.CloseDay}
}

func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func daysInMonth(month time.Month, year int) int {
	switch month {
	case time.February:
		if isLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// serial maps a date to a day count in the proleptic Gregorian calendar,
// so differences between dates are exact day distances across month and
// year boundaries.
func serial(d Date) int {
	y := d.Year - 1
	days := 365*y + y/4 - y/100 + y/400
	for m := time.January; m < d.Month; m++ {
		days += daysInMonth(m, d.Year)
	}
	return days + d.Day
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func prevMonth(d Date) Date {
	if d.Month == time.January {
		return Date{Year: d.Year - 1, Month: time.December}
	}
	return Date{Year: d.Year, Month: d.Month - 1}
}

func ordinal(day int) string {
	if day >= 11 && day <= 13 {
		return fmt.Sprintf("%dth", day)
	}
	switch day % 10 {
	case 1:
		return fmt.Sprintf("%dst", day)
	case 2:
		return fmt.Sprintf("%dnd", day)
	case 3:
		return fmt.Sprintf("%drd", day)
	default:
		return fmt.Sprintf("%dth", day)
	}
}
