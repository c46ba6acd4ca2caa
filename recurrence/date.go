package recurrence

import "time"

const dateLayout = "2006-01-02"

// Date is a timezone-naive calendar date. Arithmetic goes through the time
// package so month/year rollover is always normalized and no invalid calendar
// date can be constructed.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf extracts the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return d.toTime().Format(dateLayout)
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.toTime().AddDate(0, 0, n))
}

// AddMonths returns the date n calendar months later, normalized by the time
// package (Jan 31 + 1 month rolls into March).
func (d Date) AddMonths(n int) Date {
	return DateOf(d.toTime().AddDate(0, n, 0))
}

func (d Date) Weekday() time.Weekday {
	return d.toTime().Weekday()
}

func (d Date) Before(other Date) bool {
	return d.toTime().Before(other.toTime())
}

func (d Date) After(other Date) bool {
	return d.toTime().After(other.toTime())
}

// DaysSince returns the whole days from other to d (negative when d is
// earlier).
func (d Date) DaysSince(other Date) int {
	return int(d.toTime().Sub(other.toTime()) / (24 * time.Hour))
}

// MonthsSince returns the calendar-month difference from other to d,
// ignoring the day of month.
func (d Date) MonthsSince(other Date) int {
	return (d.Year-other.Year)*12 + int(d.Month) - int(other.Month)
}
