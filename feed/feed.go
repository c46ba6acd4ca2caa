// Package feed renders merged occurrence lists as iCalendar documents for
// the public schedule renderer and external calendar subscriptions.
package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/clubsitehq/schedkit/recurrence"
)

const prodID = "-//schedkit//Schedule Feed//EN"

// Calendar builds an iCalendar document with one VEVENT per occurrence. The
// occurrence source key doubles as the event UID, so a re-exported feed keeps
// stable identities across regenerations.
func Calendar(name string, occs []recurrence.Occurrence) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	if name != "" {
		cal.Props.SetText(ical.PropName, name)
	}

	for _, occ := range occs {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, occ.SourceKey)

		stamp := occ.Metadata.GeneratedAt
		if stamp.IsZero() {
			stamp = occ.StartsAtUTC
		}
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, occ.StartsAtUTC)
		event.Props.SetDateTime(ical.PropDateTimeEnd, occ.EndsAtUTC)
		if occ.Title != "" {
			event.Props.SetText(ical.PropSummary, occ.Title)
		}
		event.Props.SetText(ical.PropStatus, "CONFIRMED")

		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

// Encode writes the iCalendar feed for the occurrence list to w.
func Encode(w io.Writer, name string, occs []recurrence.Occurrence) error {
	if err := ical.NewEncoder(w).Encode(Calendar(name, occs)); err != nil {
		return fmt.Errorf("encode schedule feed: %w", err)
	}
	return nil
}

// RRuleString renders an interval-based rule as an RFC 5545 RRULE value, for
// consumers that subscribe to the rule itself rather than its expansion. Only
// the default recurring mode has an RRULE equivalent; other modes (explicit
// date lists, continuous ranges) are exported occurrence by occurrence.
func RRuleString(rule recurrence.Rule) (string, error) {
	if rule.Mode != recurrence.ModeRecurring && rule.Mode != "" {
		return "", fmt.Errorf("mode %q has no RRULE equivalent", rule.Mode)
	}

	opt := rrule.ROption{Interval: rule.IntervalCount}
	if opt.Interval < 1 {
		opt.Interval = 1
	}
	switch rule.IntervalUnit {
	case recurrence.UnitWeek:
		opt.Freq = rrule.WEEKLY
		for _, wd := range rule.ByWeekday {
			opt.Byweekday = append(opt.Byweekday, rruleWeekday(wd))
		}
	case recurrence.UnitMonth:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = append([]int(nil), rule.ByMonthday...)
	default:
		opt.Freq = rrule.DAILY
	}

	switch rule.EndMode {
	case recurrence.EndAfterOccurrences:
		opt.Count = rule.MaxOccurrences
	case recurrence.EndUntilDate:
		if rule.UntilDate != "" {
			until, err := time.Parse("2006-01-02", rule.UntilDate)
			if err != nil {
				return "", fmt.Errorf("parse until date: %w", err)
			}
			opt.Until = until
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return r.String(), nil
}

// rruleWeekday maps a 0=Sunday weekday number to the rrule constant.
func rruleWeekday(wd int) rrule.Weekday {
	switch wd {
	case 0:
		return rrule.SU
	case 1:
		return rrule.MO
	case 2:
		return rrule.TU
	case 3:
		return rrule.WE
	case 4:
		return rrule.TH
	case 5:
		return rrule.FR
	default:
		return rrule.SA
	}
}
