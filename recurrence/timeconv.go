package recurrence

import (
	"fmt"
	"time"
)

const (
	clockLayout   = "15:04"
	minutesPerDay = 24 * 60

	// maxOffsetIterations bounds the fixed-point offset resolution. Real
	// zone offsets move by at most a few hours per transition, so the loop
	// settles well within this.
	maxOffsetIterations = 4
)

// parseClock parses an HH:MM string into minutes since local midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// minutesToClock formats minutes since midnight as HH:MM.
func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// LocalToInstant resolves a local wall-clock moment (YYYY-MM-DD date, HH:MM
// time, IANA zone name) to an absolute instant, using the UTC offset actually
// in effect at that moment. Malformed input yields InvalidRuleInputError.
func LocalToInstant(localDate, localTime, timezone string) (time.Time, error) {
	d, err := ParseDate(localDate)
	if err != nil {
		return time.Time{}, &InvalidRuleInputError{Field: "localDate", Reason: err.Error()}
	}
	m, err := parseClock(localTime)
	if err != nil {
		return time.Time{}, &InvalidRuleInputError{Field: "localTime", Reason: err.Error()}
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, &InvalidRuleInputError{Field: "timezone", Reason: err.Error()}
	}
	return localToInstant(d, m, loc), nil
}

// localToInstant converts wall-clock fields to an instant by fixed-point
// iteration. The zone's UTC offset depends on the instant being solved for,
// so a single-pass conversion is wrong around daylight-saving transitions:
// start from the wall clock read as UTC, then repeatedly re-apply the offset
// observed at the current guess until successive corrections agree to under a
// second. Always terminates within the iteration bound and always returns a
// valid instant, including for wall-clock times a spring-forward transition
// skips.
func localToInstant(d Date, minuteOfDay int, loc *time.Location) time.Time {
	naive := time.Date(d.Year, d.Month, d.Day, minuteOfDay/60, minuteOfDay%60, 0, 0, time.UTC)
	guess := naive
	for i := 0; i < maxOffsetIterations; i++ {
		_, offset := guess.In(loc).Zone()
		next := naive.Add(-time.Duration(offset) * time.Second)
		if next.Sub(guess).Abs() < time.Second {
			return next
		}
		guess = next
	}
	return guess
}
