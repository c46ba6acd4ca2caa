package recurrence

import (
	"sort"
	"time"

	"github.com/samber/mo"
)

// window is a rule's resolved generation span in local calendar dates, both
// ends inclusive.
type window struct {
	start Date
	end   Date
}

// resolveWindow bounds generation for a rule: the window starts at the rule's
// start date (the reference date when absent) and ends at the earliest of the
// until date, the explicit end date and the horizon. None means the window is
// degenerate, which callers treat as "no occurrences", never as an error.
func resolveWindow(rule Rule, now time.Time, loc *time.Location, horizonMonths int) mo.Option[window] {
	today := DateOf(now.In(loc))

	start := today
	if rule.StartDate != "" {
		if d, err := ParseDate(rule.StartDate); err == nil {
			start = d
		}
	}

	end := today.AddMonths(horizonMonths)
	if rule.EndMode == EndUntilDate && rule.UntilDate != "" {
		if until, err := ParseDate(rule.UntilDate); err == nil && until.Before(end) {
			end = until
		}
	}
	if rule.EndDate != "" {
		if explicit, err := ParseDate(rule.EndDate); err == nil && explicit.Before(end) {
			end = explicit
		}
	}

	if end.Before(start) {
		return mo.None[window]()
	}
	return mo.Some(window{start: start, end: end})
}

// CandidateDates computes the ordered, duplicate-free list of local calendar
// dates on which the rule fires, within the horizon measured from now.
func (e *Engine) CandidateDates(rule Rule, now time.Time) ([]Date, error) {
	if now.IsZero() {
		return nil, ErrNoReferenceTime
	}
	if err := e.checkRule(rule); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, &InvalidRuleInputError{Field: "Timezone", Reason: err.Error()}
	}
	return e.candidateDates(rule, now, loc), nil
}

func (e *Engine) candidateDates(rule Rule, now time.Time, loc *time.Location) []Date {
	win, ok := resolveWindow(rule, now, loc, e.cfg.HorizonMonths).Get()
	if !ok {
		return nil
	}

	var dates []Date
	switch rule.Mode {
	case ModeSingleDate:
		if rule.StartDate != "" {
			dates = []Date{win.start}
		}
	case ModeMultipleSpecificDates, ModeCustomAdvanced:
		dates = specificDatesInWindow(rule.SpecificDates, win)
	case ModeContinuousDateRange:
		for d := win.start; !d.After(win.end); d = d.AddDays(1) {
			dates = append(dates, d)
		}
	default:
		dates = intervalDates(rule, win)
	}

	// The after_occurrences cap applies once, globally, before any time
	// conversion.
	if rule.EndMode == EndAfterOccurrences && rule.MaxOccurrences > 0 && len(dates) > rule.MaxOccurrences {
		dates = dates[:rule.MaxOccurrences]
	}
	return dates
}

// specificDatesInWindow filters an explicit date list to the window, sorted
// ascending with duplicates collapsed.
func specificDatesInWindow(raw []string, win window) []Date {
	dates := make([]Date, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDate(s)
		if err != nil {
			continue
		}
		if d.Before(win.start) || d.After(win.end) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := dates[:0]
	for i, d := range dates {
		if i == 0 || d != dates[i-1] {
			out = append(out, d)
		}
	}
	return out
}

// intervalDates runs the day-by-day scan for interval-based rules. Scanning
// every day rather than jumping by N weeks/months uniformly handles
// multi-weekday and multi-monthday rules and never constructs an invalid
// calendar date: "day 31" rules simply never match in short months.
func intervalDates(rule Rule, win window) []Date {
	interval := rule.IntervalCount
	if interval < 1 {
		interval = 1
	}
	weekdays := intSet(rule.ByWeekday)
	monthdays := intSet(rule.ByMonthday)

	var dates []Date
	for d := win.start; !d.After(win.end); d = d.AddDays(1) {
		switch rule.IntervalUnit {
		case UnitWeek:
			if !matchesWeekday(d, weekdays, win.start) {
				continue
			}
			// Week parity is anchored at the start date itself, not at a
			// calendar week boundary.
			if (d.DaysSince(win.start)/7)%interval != 0 {
				continue
			}
		case UnitMonth:
			if !matchesMonthday(d, monthdays, win.start) {
				continue
			}
			if d.MonthsSince(win.start)%interval != 0 {
				continue
			}
		default:
			if d.DaysSince(win.start)%interval != 0 {
				continue
			}
		}
		dates = append(dates, d)
	}
	return dates
}

// matchesWeekday checks membership in the rule's weekday set, falling back to
// the start date's weekday when the set is empty.
func matchesWeekday(d Date, set map[int]struct{}, start Date) bool {
	if len(set) == 0 {
		return d.Weekday() == start.Weekday()
	}
	_, ok := set[int(d.Weekday())]
	return ok
}

// matchesMonthday checks membership in the rule's day-of-month set, falling
// back to the start date's day when the set is empty.
func matchesMonthday(d Date, set map[int]struct{}, start Date) bool {
	if len(set) == 0 {
		return d.Day == start.Day
	}
	_, ok := set[d.Day]
	return ok
}

func intSet(values []int) map[int]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
