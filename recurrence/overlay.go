package recurrence

import (
	"sort"
	"time"
)

// Merge reconciles freshly generated rule occurrences with persisted skip and
// override exceptions and stand-alone manual occurrences, producing the
// effective set sorted ascending by start instant. The merge never fails; its
// three inputs are assumed to be consistent snapshots for the duration of one
// call. Restoring an exception is simply deleting it: the next regeneration
// reproduces the original occurrence because generation is pure and keyed
// deterministically.
func Merge(ruleOccs []Occurrence, exceptions []Exception, manual []Occurrence) []Occurrence {
	skips := make(map[string]struct{})
	overrides := make(map[string]Exception)
	for _, ex := range exceptions {
		switch ex.Kind {
		case ExceptionSkip:
			skips[ex.SourceKey] = struct{}{}
		case ExceptionOverride:
			overrides[ex.SourceKey] = ex
		}
	}

	merged := make([]Occurrence, 0, len(ruleOccs)+len(manual))
	for _, occ := range ruleOccs {
		if _, skipped := skips[occ.SourceKey]; skipped {
			continue
		}
		if ex, ok := overrides[occ.SourceKey]; ok {
			occ = applyOverride(occ, ex)
		}
		merged = append(merged, occ)
	}
	merged = append(merged, manual...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartsAtUTC.Before(merged[j].StartsAtUTC)
	})
	return merged
}

// applyOverride rewrites the mutable display fields (time, title) from the
// stored override, retags the occurrence and recomputes its instants. The
// source key and rule linkage are preserved so the exception keeps matching
// across regenerations.
func applyOverride(occ Occurrence, ex Exception) Occurrence {
	occ.SourceType = SourceOverride
	if ex.Title != "" {
		occ.Title = ex.Title
	}

	start := occ.LocalStartTime
	if ex.StartTime != "" {
		start = ex.StartTime
	}
	end := occ.LocalEndTime
	if ex.EndTime != "" {
		end = ex.EndTime
	}
	if start == occ.LocalStartTime && end == occ.LocalEndTime {
		return occ
	}

	loc, err := time.LoadLocation(occ.Timezone)
	if err != nil {
		return occ
	}
	d, err := ParseDate(occ.LocalDate)
	if err != nil {
		return occ
	}
	startMin, err := parseClock(start)
	if err != nil {
		return occ
	}
	endMin, err := parseClock(end)
	if err != nil {
		endMin = (startMin + 60) % minutesPerDay
	}

	occ.LocalStartTime = minutesToClock(startMin)
	occ.LocalEndTime = minutesToClock(endMin)
	occ.StartsAtUTC = localToInstant(d, startMin, loc)
	occ.EndsAtUTC = localToInstant(d, endMin, loc)
	if !occ.EndsAtUTC.After(occ.StartsAtUTC) {
		occ.EndsAtUTC = occ.StartsAtUTC.Add(time.Hour)
	}
	return occ
}

// SourceFilter selects a pure view over a merged occurrence set.
type SourceFilter string

const (
	FilterAll SourceFilter = "all"
	// FilterRule keeps unmodified rule-generated occurrences.
	FilterRule SourceFilter = "rule"
	// FilterManual keeps stand-alone manual occurrences.
	FilterManual SourceFilter = "manual"
	// FilterExceptions keeps only occurrences an override exception touched
	// (skipped occurrences are already absent from a merged set).
	FilterExceptions SourceFilter = "exceptions"
)

// FilterBySource is a view over an already merged set; it never recomputes.
func FilterBySource(occs []Occurrence, filter SourceFilter) []Occurrence {
	if filter == FilterAll || filter == "" {
		return occs
	}
	out := make([]Occurrence, 0, len(occs))
	for _, occ := range occs {
		switch filter {
		case FilterRule:
			if occ.SourceType == SourceRule {
				out = append(out, occ)
			}
		case FilterManual:
			if occ.SourceType == SourceManual {
				out = append(out, occ)
			}
		case FilterExceptions:
			if occ.SourceType == SourceOverride {
				out = append(out, occ)
			}
		}
	}
	return out
}

// FilterWindow keeps occurrences overlapping [from, to): start before the
// window end and end after the window start.
func FilterWindow(occs []Occurrence, from, to time.Time) []Occurrence {
	out := make([]Occurrence, 0, len(occs))
	for _, occ := range occs {
		if occ.StartsAtUTC.Before(to) && occ.EndsAtUTC.After(from) {
			out = append(out, occ)
		}
	}
	return out
}
