package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyRule() Rule {
	return Rule{
		ID: "r1", ProgramNodeID: "node-1", Title: "Practice",
		Timezone: "UTC", Active: true,
		StartDate:     "2024-01-02",
		StartTime:     "18:00",
		EndTime:       "19:00",
		IntervalCount: 1,
		IntervalUnit:  UnitWeek,
		ByWeekday:     []int{2},
		EndMode:       EndUntilDate,
		UntilDate:     "2024-01-31",
	}
}

func TestMergeSkipAndRestore(t *testing.T) {
	engine := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)
	require.Len(t, occs, 5) // Tuesdays Jan 2, 9, 16, 23, 30

	skipped := occs[1]
	exceptions := []Exception{{
		ID: "ex1", RuleID: "r1", SourceKey: skipped.SourceKey, Kind: ExceptionSkip,
	}}

	merged := Merge(occs, exceptions, nil)
	assert.Len(t, merged, 4)
	for _, occ := range merged {
		assert.NotEqual(t, skipped.SourceKey, occ.SourceKey)
	}

	// Restoring means deleting the exception: regeneration plus an empty
	// exception set reproduces the original occurrence with identical
	// instants.
	regenerated, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)
	restored := Merge(regenerated, nil, nil)
	require.Len(t, restored, 5)
	assert.Equal(t, skipped, restored[1])
}

func TestMergeOverridePrecedence(t *testing.T) {
	engine := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)
	target := occs[2]

	exceptions := []Exception{{
		ID: "ex1", RuleID: "r1", SourceKey: target.SourceKey,
		Kind:      ExceptionOverride,
		Title:     "Practice (moved)",
		StartTime: "20:00",
		EndTime:   "21:30",
	}}

	merged := Merge(occs, exceptions, nil)
	require.Len(t, merged, 5)

	var got *Occurrence
	for i := range merged {
		if merged[i].SourceKey == target.SourceKey {
			got = &merged[i]
		}
	}
	require.NotNil(t, got)

	assert.Equal(t, SourceOverride, got.SourceType)
	assert.Equal(t, "Practice (moved)", got.Title)
	assert.Equal(t, "20:00", got.LocalStartTime)
	assert.Equal(t, "21:30", got.LocalEndTime)
	// Key and rule linkage survive the override.
	assert.Equal(t, target.SourceKey, got.SourceKey)
	assert.Equal(t, target.SourceRuleID, got.SourceRuleID)
	// The stored time wins over the rule-computed time.
	assert.True(t, got.StartsAtUTC.Equal(time.Date(2024, 1, 16, 20, 0, 0, 0, time.UTC)))
	assert.True(t, got.EndsAtUTC.Equal(time.Date(2024, 1, 16, 21, 30, 0, 0, time.UTC)))
}

func TestMergeManualUnionAndOrdering(t *testing.T) {
	engine := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)

	manual, err := engine.NewManualOccurrence(ManualInput{
		ID: "m1", ProgramNodeID: "node-1", Title: "Extra Session",
		Timezone: "UTC", LocalDate: "2024-01-10", StartTime: "09:00",
	}, now)
	require.NoError(t, err)

	merged := Merge(occs, nil, []Occurrence{manual})
	require.Len(t, merged, 6)

	// Sorted by start instant: the manual session lands between the Jan 9
	// and Jan 16 Tuesdays.
	assert.Equal(t, "2024-01-09", merged[1].LocalDate)
	assert.Equal(t, "manual:m1", merged[2].SourceKey)
	assert.Equal(t, "2024-01-16", merged[3].LocalDate)

	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].StartsAtUTC.Before(merged[i-1].StartsAtUTC))
	}
}

func TestFilterBySource(t *testing.T) {
	engine := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)

	manual, err := engine.NewManualOccurrence(ManualInput{
		ID: "m1", Timezone: "UTC", LocalDate: "2024-01-10",
	}, now)
	require.NoError(t, err)

	exceptions := []Exception{{
		ID: "ex1", RuleID: "r1", SourceKey: occs[0].SourceKey,
		Kind: ExceptionOverride, StartTime: "20:00",
	}}
	merged := Merge(occs, exceptions, []Occurrence{manual})

	assert.Len(t, FilterBySource(merged, FilterRule), 4)
	assert.Len(t, FilterBySource(merged, FilterManual), 1)
	assert.Len(t, FilterBySource(merged, FilterExceptions), 1)
	assert.Len(t, FilterBySource(merged, FilterAll), 6)
}

func TestFilterWindow(t *testing.T) {
	engine := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := engine.Generate(weeklyRule(), now)
	require.NoError(t, err)

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	windowed := FilterWindow(occs, from, to)

	require.Len(t, windowed, 2)
	assert.Equal(t, "2024-01-09", windowed[0].LocalDate)
	assert.Equal(t, "2024-01-16", windowed[1].LocalDate)
}
